package tier

import (
	"fmt"
	"slices"
)

// Policy describes what a tier may use and how much.
type Policy struct {
	AllowedModels    []string
	AllowedWorkflows []string
	DailyQuota       int64
}

// AllowsModel reports whether the model identifier is entitled.
func (p Policy) AllowsModel(model string) bool {
	return slices.Contains(p.AllowedModels, model)
}

// AllowsWorkflow reports whether the workflow identifier is entitled.
func (p Policy) AllowsWorkflow(workflowID string) bool {
	return slices.Contains(p.AllowedWorkflows, workflowID)
}

func (p Policy) clone() Policy {
	return Policy{
		AllowedModels:    slices.Clone(p.AllowedModels),
		AllowedWorkflows: slices.Clone(p.AllowedWorkflows),
		DailyQuota:       p.DailyQuota,
	}
}

// Table is the immutable tier policy table built once at startup.
type Table struct {
	standard   Policy
	pro        Policy
	enterprise Policy
}

// NewTable validates and freezes the given policies. Every known tier must be present.
func NewTable(policies map[Tier]Policy) (*Table, error) {
	for tierName := range policies {
		if !tierName.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTier, string(tierName))
		}
	}
	t := &Table{}
	for _, tierName := range All() {
		policy, ok := policies[tierName]
		if !ok {
			return nil, fmt.Errorf("tier: no policy configured for %s", tierName)
		}
		if policy.DailyQuota < 0 {
			return nil, fmt.Errorf("tier: negative daily quota for %s", tierName)
		}
		switch tierName {
		case Standard:
			t.standard = policy.clone()
		case Pro:
			t.pro = policy.clone()
		case Enterprise:
			t.enterprise = policy.clone()
		}
	}
	return t, nil
}

// Lookup returns the policy for the tier.
func (t *Table) Lookup(tierName Tier) (Policy, error) {
	if t == nil {
		return Policy{}, fmt.Errorf("tier: nil table")
	}
	switch tierName {
	case Standard:
		return t.standard.clone(), nil
	case Pro:
		return t.pro.clone(), nil
	case Enterprise:
		return t.enterprise.clone(), nil
	default:
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownTier, string(tierName))
	}
}

// DefaultPolicies returns the built-in tier entitlements.
func DefaultPolicies() map[Tier]Policy {
	return map[Tier]Policy{
		Standard: {
			AllowedModels:    []string{"openai/gpt-3.5-turbo", "anthropic/claude-instant-1"},
			AllowedWorkflows: []string{"basic-chat", "simple-rag"},
			DailyQuota:       100,
		},
		Pro: {
			AllowedModels:    []string{"openai/gpt-3.5-turbo", "anthropic/claude-instant-1", "anthropic/claude-2"},
			AllowedWorkflows: []string{"basic-chat", "simple-rag", "advanced-rag", "data-analysis"},
			DailyQuota:       1000,
		},
		Enterprise: {
			AllowedModels:    []string{"openai/gpt-3.5-turbo", "anthropic/claude-instant-1", "anthropic/claude-2", "openai/gpt-4"},
			AllowedWorkflows: []string{"basic-chat", "simple-rag", "advanced-rag", "data-analysis", "custom-workflows"},
			DailyQuota:       10000,
		},
	}
}
