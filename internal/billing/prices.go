package billing

import (
	"strings"

	"github.com/owaiken/gateway/internal/config"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/tier"

	"github.com/stripe/stripe-go/v76"
)

// PriceMap resolves payment provider price IDs to tiers.
type PriceMap struct {
	Standard   string
	Pro        string
	Enterprise string
}

// PriceMapFromConfig builds a PriceMap from billing settings.
func PriceMapFromConfig(cfg config.BillingConfig) PriceMap {
	return PriceMap{
		Standard:   strings.TrimSpace(cfg.StandardPriceID),
		Pro:        strings.TrimSpace(cfg.ProPriceID),
		Enterprise: strings.TrimSpace(cfg.EnterprisePriceID),
	}
}

// TierFor returns the tier bought by priceID. Unrecognized prices map to standard.
func (p PriceMap) TierFor(priceID string) tier.Tier {
	t, _ := p.Resolve(priceID)
	return t
}

// Resolve returns the tier bought by priceID and whether priceID is one of the configured prices.
func (p PriceMap) Resolve(priceID string) (tier.Tier, bool) {
	priceID = strings.TrimSpace(priceID)
	switch {
	case priceID == "":
		return tier.Standard, false
	case priceID == p.Pro:
		return tier.Pro, true
	case priceID == p.Enterprise:
		return tier.Enterprise, true
	case priceID == p.Standard:
		return tier.Standard, true
	default:
		return tier.Standard, false
	}
}

// StatusFor maps a provider subscription status onto the account status set.
func StatusFor(status stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch string(status) {
	case "active", "trialing":
		return models.SubscriptionStatusActive
	case "past_due", "unpaid":
		return models.SubscriptionStatusPastDue
	case "canceled":
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusInactive
	}
}

// firstPriceID returns the price of the first subscription item.
func firstPriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil {
		return ""
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil && item.Price.ID != "" {
			return item.Price.ID
		}
	}
	return ""
}
