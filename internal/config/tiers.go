package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/owaiken/gateway/internal/tier"
)

// Env keys for per-tier quota overrides.
const (
	EnvStandardRateLimit   = "STANDARD_RATE_LIMIT"
	EnvProRateLimit        = "PRO_RATE_LIMIT"
	EnvEnterpriseRateLimit = "ENTERPRISE_RATE_LIMIT"
)

// tierFileConfig maps one tier entry in the YAML config.
type tierFileConfig struct {
	DailyQuota *int64   `yaml:"daily-quota"`
	Models     []string `yaml:"models"`
	Workflows  []string `yaml:"workflows"`
}

// LoadTierTable builds the immutable tier policy table.
// A `tiers` section replaces the built-in defaults entirely, so every tier must be listed.
func LoadTierTable(configPath string) (*tier.Table, error) {
	// fileConfig maps the YAML fields needed for tier policies.
	type fileConfig struct {
		Tiers map[string]tierFileConfig `yaml:"tiers"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return nil, errRead
	}

	policies := tier.DefaultPolicies()
	if len(cfg.Tiers) > 0 {
		policies = make(map[tier.Tier]tier.Policy, len(cfg.Tiers))
		for name, entry := range cfg.Tiers {
			parsed, errParse := tier.Parse(name)
			if errParse != nil || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("config: tiers: %w", tier.ErrUnknownTier)
			}
			if entry.DailyQuota == nil {
				return nil, fmt.Errorf("config: tiers.%s: daily-quota is required", parsed)
			}
			policies[parsed] = tier.Policy{
				AllowedModels:    trimAll(entry.Models),
				AllowedWorkflows: trimAll(entry.Workflows),
				DailyQuota:       *entry.DailyQuota,
			}
		}
	}

	envQuotas := map[tier.Tier]string{
		tier.Standard:   EnvStandardRateLimit,
		tier.Pro:        EnvProRateLimit,
		tier.Enterprise: EnvEnterpriseRateLimit,
	}
	for tierName, envKey := range envQuotas {
		raw := strings.TrimSpace(os.Getenv(envKey))
		if raw == "" {
			continue
		}
		quota, errParse := strconv.ParseInt(raw, 10, 64)
		if errParse != nil {
			return nil, fmt.Errorf("config: %s: %w", envKey, errParse)
		}
		policy, ok := policies[tierName]
		if !ok {
			continue
		}
		policy.DailyQuota = quota
		policies[tierName] = policy
	}

	return tier.NewTable(policies)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
