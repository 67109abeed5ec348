package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/owaiken/gateway/internal/db"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/store"
	"github.com/owaiken/gateway/internal/tier"

	"gorm.io/gorm"
)

// ErrAccountExists indicates the identity key is already provisioned.
var ErrAccountExists = errors.New("account already exists")

// ProvisionRequest describes an account to create.
type ProvisionRequest struct {
	IdentityKey string
	Email       string
	Tier        string
}

// ProvisionAccount opens dsn, migrates, and creates the account.
func ProvisionAccount(ctx context.Context, dsn string, req ProvisionRequest) (*models.Account, error) {
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, fmt.Errorf("migrate database: %w", errMigrate)
	}
	return ProvisionAccountWithConn(ctx, conn, req)
}

// ProvisionAccountWithConn creates an account with zeroed counters.
func ProvisionAccountWithConn(ctx context.Context, conn *gorm.DB, req ProvisionRequest) (*models.Account, error) {
	if conn == nil {
		return nil, fmt.Errorf("open database: nil connection")
	}
	identityKey := strings.TrimSpace(req.IdentityKey)
	if identityKey == "" {
		return nil, fmt.Errorf("identity key is required")
	}
	accountTier := tier.Standard
	if raw := strings.TrimSpace(req.Tier); raw != "" {
		parsed, errParse := tier.Parse(raw)
		if errParse != nil {
			return nil, errParse
		}
		accountTier = parsed
	}

	accounts := store.NewGormAccountStore(conn)
	if _, errFind := accounts.FindByIdentity(ctx, identityKey); errFind == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(errFind, store.ErrAccountNotFound) {
		return nil, errFind
	}

	account := &models.Account{
		IdentityKey:        identityKey,
		Email:              strings.TrimSpace(req.Email),
		Tier:               accountTier,
		SubscriptionStatus: models.SubscriptionStatusInactive,
	}
	if errCreate := accounts.Create(ctx, account); errCreate != nil {
		return nil, errCreate
	}
	return account, nil
}

// CountAccounts returns the number of provisioned accounts.
func CountAccounts(ctx context.Context, conn *gorm.DB) (int64, error) {
	if conn == nil {
		return 0, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.Account{}) {
		return 0, nil
	}
	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.Account{}).Count(&count).Error; errCount != nil {
		return 0, errCount
	}
	return count, nil
}
