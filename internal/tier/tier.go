package tier

import (
	"errors"
	"fmt"
	"strings"
)

// Tier identifies a subscription tier.
type Tier string

// Known subscription tiers.
const (
	// Standard is the entry tier and the fallback for unset accounts.
	Standard Tier = "standard"
	// Pro is the mid tier.
	Pro Tier = "pro"
	// Enterprise unlocks every model and custom automation endpoints.
	Enterprise Tier = "enterprise"
)

// ErrUnknownTier indicates a tier name outside the known set.
var ErrUnknownTier = errors.New("tier: unknown tier")

// All returns every known tier in display order.
func All() []Tier {
	return []Tier{Standard, Pro, Enterprise}
}

// Parse normalizes a stored tier name. Empty values read as Standard.
func Parse(raw string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Standard:
		return Standard, nil
	case Pro:
		return Pro, nil
	case Enterprise:
		return Enterprise, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, raw)
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case Standard, Pro, Enterprise:
		return true
	default:
		return false
	}
}

// AllowsCustomEndpoint reports whether the tier may route workflows to a customer endpoint.
func (t Tier) AllowsCustomEndpoint() bool {
	return t == Enterprise
}

func (t Tier) String() string { return string(t) }
