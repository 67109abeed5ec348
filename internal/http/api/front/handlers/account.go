package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/owaiken/gateway/internal/apperr"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/tier"
	"github.com/owaiken/gateway/internal/usage"

	"github.com/gin-gonic/gin"
)

// PolicyResolver returns the effective tier policy of an account.
type PolicyResolver interface {
	Policy(account *models.Account) (tier.Policy, error)
}

// UsageLister lists recorded usage events.
type UsageLister interface {
	List(ctx context.Context, accountID uint64, filter usage.Filter) ([]models.UsageEvent, error)
}

// AccountHandler serves the caller's account and usage views.
type AccountHandler struct {
	policies PolicyResolver
	usage    UsageLister
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(policies PolicyResolver, lister UsageLister) *AccountHandler {
	return &AccountHandler{policies: policies, usage: lister}
}

// Get returns tier, status, counters and the remaining quota.
func (h *AccountHandler) Get(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	policy, errPolicy := h.policies.Policy(account)
	if errPolicy != nil {
		respondError(c, errPolicy)
		return
	}
	used := max(account.MessageCount, account.WorkflowCount)
	c.JSON(http.StatusOK, gin.H{
		"tier":                account.Tier,
		"subscription_status": account.SubscriptionStatus,
		"message_count":       account.MessageCount,
		"workflow_count":      account.WorkflowCount,
		"daily_quota":         policy.DailyQuota,
		"remaining":           max(policy.DailyQuota-used, 0),
		"allowed_models":      policy.AllowedModels,
		"allowed_workflows":   policy.AllowedWorkflows,
		"custom_endpoint":     account.CustomEndpointActive(),
	})
}

// UsageEvents lists the caller's recent usage events.
func (h *AccountHandler) UsageEvents(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	filter := usage.Filter{Model: strings.TrimSpace(c.Query("model"))}
	switch actionQ := strings.TrimSpace(c.Query("action")); actionQ {
	case "":
	case string(models.UsageActionChat), string(models.UsageActionWorkflow):
		filter.Action = models.UsageAction(actionQ)
	default:
		respondError(c, apperr.New(apperr.KindValidation, "invalid action"))
		return
	}
	if limitQ := strings.TrimSpace(c.Query("limit")); limitQ != "" {
		limit, errParse := strconv.Atoi(limitQ)
		if errParse != nil || limit <= 0 {
			respondError(c, apperr.New(apperr.KindValidation, "invalid limit"))
			return
		}
		filter.Limit = limit
	}

	rows, errList := h.usage.List(c.Request.Context(), account.ID, filter)
	if errList != nil {
		respondError(c, apperr.Wrap(apperr.KindInternal, "list usage events failed", errList))
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":              row.ID,
			"action":          row.Action,
			"target_id":       row.TargetID,
			"request_id":      row.RequestID,
			"custom_endpoint": row.CustomEndpoint,
			"payload":         row.Payload,
			"created_at":      row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}
