package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to PostgreSQL or SQLite depending on the DSN shape.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	cfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	if isPostgresDSN(dsn) {
		connConfig, errParse := pgx.ParseConfig(dsn)
		if errParse != nil {
			return nil, fmt.Errorf("db: parse postgres dsn: %w", errParse)
		}
		dialector = postgres.New(postgres.Config{Conn: stdlib.OpenDB(*connConfig)})
	} else {
		dialector = sqlite.Open(dsn)
	}

	conn, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if IsSQLite(conn) {
		// SQLite allows a single writer.
		if sqlDB, errDB := conn.DB(); errDB == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return conn, nil
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return true
	}
	return strings.Contains(lower, "host=") && strings.Contains(lower, "dbname=")
}
