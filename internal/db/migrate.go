package db

import (
	"fmt"

	"github.com/owaiken/gateway/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(&models.Account{}, &models.UsageEvent{}); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errCheck := conn.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'chk_accounts_counters_non_negative'
			) THEN
				ALTER TABLE accounts
				ADD CONSTRAINT chk_accounts_counters_non_negative
				CHECK (message_count >= 0 AND workflow_count >= 0);
			END IF;
		END $$;
	`).Error; errCheck != nil {
		return fmt.Errorf("db: add counters check: %w", errCheck)
	}
	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_usage_events_account_created
		ON usage_events (account_id, created_at DESC)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create usage events index: %w", errIndex)
	}
	return nil
}

// migrateSQLite applies the schema for local and test databases.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(&models.Account{}, &models.UsageEvent{}); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_usage_events_account_created
		ON usage_events (account_id, created_at DESC)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create usage events index: %w", errIndex)
	}
	return nil
}
