package config

import (
	"errors"
	"strings"
	"time"
)

const (
	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvStandardPlanID      = "STANDARD_PLAN_ID"
	EnvProPlanID           = "PRO_PLAN_ID"
	EnvEnterprisePlanID    = "ENTERPRISE_PLAN_ID"
)

// ErrMissingWebhookSecret indicates the payment webhook cannot be verified.
var ErrMissingWebhookSecret = errors.New("missing payment webhook secret (set `billing.webhook-secret` or STRIPE_WEBHOOK_SECRET)")

// BillingConfig holds payment provider credentials and price identifiers.
type BillingConfig struct {
	SecretKey         string        `yaml:"secret-key"`
	WebhookSecret     string        `yaml:"webhook-secret"`
	WebhookTolerance  time.Duration `yaml:"webhook-tolerance"`
	StandardPriceID   string        `yaml:"standard-price-id"`
	ProPriceID        string        `yaml:"pro-price-id"`
	EnterprisePriceID string        `yaml:"enterprise-price-id"`
}

// defaultWebhookTolerance matches the payment provider's recommended replay window.
const defaultWebhookTolerance = 5 * time.Minute

// LoadBillingConfig loads payment provider settings from the YAML config file and environment.
func LoadBillingConfig(configPath string) (BillingConfig, error) {
	// fileConfig maps the YAML fields needed for billing settings.
	type fileConfig struct {
		Billing BillingConfig `yaml:"billing"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return BillingConfig{}, errRead
	}
	result := cfg.Billing

	overrideFromEnv(&result.SecretKey, EnvStripeSecretKey)
	overrideFromEnv(&result.WebhookSecret, EnvStripeWebhookSecret)
	overrideFromEnv(&result.StandardPriceID, EnvStandardPlanID)
	overrideFromEnv(&result.ProPriceID, EnvProPlanID)
	overrideFromEnv(&result.EnterprisePriceID, EnvEnterprisePlanID)

	if result.WebhookTolerance <= 0 {
		result.WebhookTolerance = defaultWebhookTolerance
	}
	if strings.TrimSpace(result.WebhookSecret) == "" {
		return BillingConfig{}, ErrMissingWebhookSecret
	}
	return result, nil
}
