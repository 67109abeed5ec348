package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/tier"

	"gorm.io/gorm"
)

// ErrAccountNotFound is returned when no account matches the lookup key.
var ErrAccountNotFound = errors.New("store: account not found")

// Override is the customer-managed automation endpoint configuration.
type Override struct {
	Enabled     bool
	Endpoint    string
	EndpointSet bool   // False keeps the stored endpoint.
	APIKey      string // Already sealed; empty keeps the stored key.
	ClearKey    bool
}

// Checkout is the account state established by a completed checkout.
type Checkout struct {
	CustomerID     string
	SubscriptionID string
	Tier           tier.Tier
	Status         models.SubscriptionStatus
}

// GormAccountStore reads and writes accounts through GORM.
type GormAccountStore struct {
	db *gorm.DB
}

// NewGormAccountStore constructs a GormAccountStore.
func NewGormAccountStore(db *gorm.DB) *GormAccountStore {
	return &GormAccountStore{db: db}
}

// FindByIdentity loads the account for an auth provider subject.
func (s *GormAccountStore) FindByIdentity(ctx context.Context, identityKey string) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("account store: not initialized")
	}
	identityKey = strings.TrimSpace(identityKey)
	if identityKey == "" {
		return nil, ErrAccountNotFound
	}
	var account models.Account
	errFind := s.db.WithContext(ctx).Where("identity_key = ?", identityKey).First(&account).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("account store: find by identity: %w", errFind)
	}
	return &account, nil
}

// Create inserts a new account.
func (s *GormAccountStore) Create(ctx context.Context, account *models.Account) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("account store: not initialized")
	}
	if account == nil {
		return fmt.Errorf("account store: account is nil")
	}
	if account.Tier == "" {
		account.Tier = tier.Standard
	}
	if account.SubscriptionStatus == "" {
		account.SubscriptionStatus = models.SubscriptionStatusInactive
	}
	if errCreate := s.db.WithContext(ctx).Create(account).Error; errCreate != nil {
		return fmt.Errorf("account store: create: %w", errCreate)
	}
	return nil
}

// UpdateOverride writes the automation override fields for an account.
func (s *GormAccountStore) UpdateOverride(ctx context.Context, accountID uint64, override Override) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("account store: not initialized")
	}
	updates := map[string]any{"use_custom_n8n": override.Enabled}
	if override.EndpointSet {
		updates["custom_n8n_endpoint"] = strings.TrimSpace(override.Endpoint)
	}
	switch {
	case override.ClearKey:
		updates["custom_n8n_api_key"] = ""
	case override.APIKey != "":
		updates["custom_n8n_api_key"] = override.APIKey
	}
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", accountID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("account store: update override: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ApplyCheckout links a payment subscription to the account and starts a fresh period.
func (s *GormAccountStore) ApplyCheckout(ctx context.Context, identityKey string, checkout Checkout) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("account store: not initialized")
	}
	identityKey = strings.TrimSpace(identityKey)
	if identityKey == "" {
		return ErrAccountNotFound
	}
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("identity_key = ?", identityKey).
		Updates(map[string]any{
			"stripe_customer_id":     checkout.CustomerID,
			"stripe_subscription_id": checkout.SubscriptionID,
			"tier":                   checkout.Tier,
			"subscription_status":    checkout.Status,
			"message_count":          0,
		})
	if res.Error != nil {
		return fmt.Errorf("account store: apply checkout: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ResetMessageCountBySubscription zeroes message_count of the account owning subscriptionID.
// workflow_count is left as is.
func (s *GormAccountStore) ResetMessageCountBySubscription(ctx context.Context, subscriptionID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("account store: not initialized")
	}
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("stripe_subscription_id = ?", subscriptionID).
		Update("message_count", 0)
	if res.Error != nil {
		return 0, fmt.Errorf("account store: reset counters: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UpdateSubscription sets tier and status on the account owning subscriptionID.
func (s *GormAccountStore) UpdateSubscription(ctx context.Context, subscriptionID string, t tier.Tier, status models.SubscriptionStatus) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("account store: not initialized")
	}
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("stripe_subscription_id = ?", subscriptionID).
		Updates(map[string]any{
			"tier":                t,
			"subscription_status": status,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("account store: update subscription: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CancelSubscription drops the account owning subscriptionID back to the standard tier.
func (s *GormAccountStore) CancelSubscription(ctx context.Context, subscriptionID string) (int64, error) {
	return s.UpdateSubscription(ctx, subscriptionID, tier.Standard, models.SubscriptionStatusCanceled)
}
