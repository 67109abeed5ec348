package models

import (
	"time"

	"github.com/owaiken/gateway/internal/tier"
)

// SubscriptionStatus mirrors the payment provider subscription state on an account.
type SubscriptionStatus string

// SubscriptionStatus constants define the account billing states.
const (
	// SubscriptionStatusActive marks a paid, current subscription.
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusInactive marks an account without a live subscription.
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	// SubscriptionStatusCanceled marks a canceled subscription.
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	// SubscriptionStatusPastDue marks a subscription with a failed renewal.
	SubscriptionStatusPastDue SubscriptionStatus = "past_due"
)

// Account is the per-identity record read and written by the usage gate and billing sync.
type Account struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	IdentityKey string `gorm:"type:varchar(255);not null;uniqueIndex"` // Subject from the auth provider.
	Email       string `gorm:"type:text"`                              // Contact email.

	Tier               tier.Tier          `gorm:"type:varchar(32);not null;default:'standard'"` // Subscription tier.
	SubscriptionStatus SubscriptionStatus `gorm:"type:varchar(32);not null;default:'inactive'"` // Billing state.

	MessageCount  int64 `gorm:"not null;default:0"` // Chat and workflow calls this period.
	WorkflowCount int64 `gorm:"not null;default:0"` // Workflow calls this period.

	StripeCustomerID     string `gorm:"type:varchar(255);index"` // Payment provider customer ID.
	StripeSubscriptionID string `gorm:"type:varchar(255);index"` // Payment provider subscription ID.

	UseCustomN8n      bool   `gorm:"not null;default:false"` // Route workflows to the customer endpoint.
	CustomN8nEndpoint string `gorm:"type:text"`              // Customer automation base URL.
	CustomN8nAPIKey   string `gorm:"type:text"`              // Sealed customer automation API key.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// CustomEndpointActive reports whether workflows for this account go to its own endpoint.
func (a *Account) CustomEndpointActive() bool {
	if a == nil {
		return false
	}
	return a.Tier == tier.Enterprise && a.UseCustomN8n && a.CustomN8nEndpoint != ""
}
