// Package gate decides whether an account may perform a chat or workflow call and,
// when it may, resolves where the call goes and how it is metered afterwards.
package gate

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/owaiken/gateway/internal/apperr"
	"github.com/owaiken/gateway/internal/metrics"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/secrets"
	"github.com/owaiken/gateway/internal/settings"
	"github.com/owaiken/gateway/internal/tier"
	"github.com/owaiken/gateway/internal/usage"

	"github.com/google/uuid"
)

// Committer records a successful forwarded call.
type Committer interface {
	Commit(ctx context.Context, entry usage.Entry) error
}

// Endpoints are the managed downstream targets and their shared credentials.
type Endpoints struct {
	ChatURL           string
	ChatAPIKey        string
	AutomationBaseURL string
	AutomationAPIKey  string
}

// Target is the resolved downstream destination of an allowed call.
type Target struct {
	URL        string
	Credential string
	Custom     bool
}

// Decision is an allowed call. Commit must be invoked only after the downstream call succeeded.
type Decision struct {
	Action    models.UsageAction
	TargetID  string
	Target    Target
	RequestID string
	Quota     int64
	Used      int64

	commit func(ctx context.Context, payload []byte) error
}

// Commit meters the call with the given payload snapshot.
func (d *Decision) Commit(ctx context.Context, payload []byte) error {
	if d == nil || d.commit == nil {
		return nil
	}
	return d.commit(ctx, payload)
}

// Gate evaluates tier policy for incoming calls.
type Gate struct {
	table     *tier.Table
	endpoints Endpoints
	box       *secrets.Box
	committer Committer
}

// New constructs a Gate.
func New(table *tier.Table, endpoints Endpoints, box *secrets.Box, committer Committer) (*Gate, error) {
	if table == nil {
		return nil, fmt.Errorf("gate: tier table is nil")
	}
	if committer == nil {
		return nil, fmt.Errorf("gate: committer is nil")
	}
	endpoints.AutomationBaseURL = strings.TrimRight(strings.TrimSpace(endpoints.AutomationBaseURL), "/")
	return &Gate{table: table, endpoints: endpoints, box: box, committer: committer}, nil
}

// Policy returns the effective tier policy of an account.
func (g *Gate) Policy(account *models.Account) (tier.Policy, error) {
	if account == nil {
		return tier.Policy{}, apperr.New(apperr.KindAccountNotFound, "User not found")
	}
	t, errParse := tier.Parse(string(account.Tier))
	if errParse != nil {
		return tier.Policy{}, apperr.Wrap(apperr.KindInternal, "Internal server error", errParse)
	}
	policy, errLookup := g.table.Lookup(t)
	if errLookup != nil {
		return tier.Policy{}, apperr.Wrap(apperr.KindInternal, "Internal server error", errLookup)
	}
	return policy, nil
}

// Evaluate applies quota and allow-list rules for action on targetID.
// For chat the quota is checked before the model; for workflows the allow-list comes first.
func (g *Gate) Evaluate(account *models.Account, action models.UsageAction, targetID string) (*Decision, error) {
	decision, err := g.evaluate(account, action, targetID)
	outcome := "allowed"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	metrics.GateDecisions.WithLabelValues(string(action), outcome).Inc()
	return decision, err
}

func (g *Gate) evaluate(account *models.Account, action models.UsageAction, targetID string) (*Decision, error) {
	policy, errPolicy := g.Policy(account)
	if errPolicy != nil {
		return nil, errPolicy
	}
	targetID = strings.TrimSpace(targetID)
	quota := policy.DailyQuota

	var target Target
	switch action {
	case models.UsageActionChat:
		if targetID == "" {
			targetID = settings.DefaultChatModel
		}
		if account.MessageCount >= quota {
			return nil, quotaExceeded(quota, account.MessageCount)
		}
		if !policy.AllowsModel(targetID) {
			return nil, apperr.New(apperr.KindNotAuthorized, fmt.Sprintf("Model %s not available in your subscription tier", targetID))
		}
		target = Target{URL: g.endpoints.ChatURL, Credential: g.endpoints.ChatAPIKey}

	case models.UsageActionWorkflow:
		if targetID == "" {
			return nil, apperr.New(apperr.KindValidation, "Workflow ID is required")
		}
		custom := account.CustomEndpointActive()
		if !custom && !policy.AllowsWorkflow(targetID) {
			return nil, apperr.New(apperr.KindNotAuthorized, fmt.Sprintf("Workflow %s not available in your subscription tier", targetID))
		}
		if account.WorkflowCount >= quota || account.MessageCount >= quota {
			return nil, quotaExceeded(quota, max(account.WorkflowCount, account.MessageCount))
		}
		resolved, errTarget := g.workflowTarget(account, targetID, custom)
		if errTarget != nil {
			return nil, errTarget
		}
		target = resolved

	default:
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("unsupported action %q", action))
	}

	decision := &Decision{
		Action:    action,
		TargetID:  targetID,
		Target:    target,
		RequestID: uuid.NewString(),
		Quota:     quota,
		Used:      account.MessageCount,
	}
	entry := usage.Entry{
		AccountID:      account.ID,
		IdentityKey:    account.IdentityKey,
		Action:         action,
		TargetID:       targetID,
		RequestID:      decision.RequestID,
		CustomEndpoint: target.Custom,
	}
	decision.commit = func(ctx context.Context, payload []byte) error {
		e := entry
		e.Payload = payload
		return g.committer.Commit(ctx, e)
	}
	return decision, nil
}

// workflowTarget resolves the webhook URL and credential for a workflow call.
func (g *Gate) workflowTarget(account *models.Account, workflowID string, custom bool) (Target, error) {
	path := "/webhook/" + url.PathEscape(workflowID)
	if !custom {
		return Target{URL: g.endpoints.AutomationBaseURL + path, Credential: g.endpoints.AutomationAPIKey}, nil
	}
	credential := ""
	if account.CustomN8nAPIKey != "" {
		opened, errOpen := g.box.Open(account.CustomN8nAPIKey)
		if errOpen != nil {
			return Target{}, apperr.Wrap(apperr.KindInternal, "Internal server error", errOpen)
		}
		credential = opened
	}
	base := strings.TrimRight(strings.TrimSpace(account.CustomN8nEndpoint), "/")
	return Target{URL: base + path, Credential: credential, Custom: true}, nil
}

func quotaExceeded(quota, used int64) error {
	return apperr.New(apperr.KindQuotaExceeded, "Rate limit exceeded for your subscription tier").
		WithDetails(map[string]any{"quota": quota, "used": used})
}
