package handlers

import (
	"net/http"

	"github.com/owaiken/gateway/internal/tier"

	"github.com/gin-gonic/gin"
)

// PlanFrontHandler serves the tier policy table for the pricing page.
type PlanFrontHandler struct {
	table *tier.Table
}

// NewPlanFrontHandler constructs a PlanFrontHandler.
func NewPlanFrontHandler(table *tier.Table) *PlanFrontHandler {
	return &PlanFrontHandler{table: table}
}

// List returns every tier with its models, workflows and daily quota.
func (h *PlanFrontHandler) List(c *gin.Context) {
	out := make([]gin.H, 0, len(tier.All()))
	for _, t := range tier.All() {
		policy, errLookup := h.table.Lookup(t)
		if errLookup != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
			return
		}
		out = append(out, gin.H{
			"tier":            t,
			"daily_quota":     policy.DailyQuota,
			"models":          policy.AllowedModels,
			"workflows":       policy.AllowedWorkflows,
			"custom_endpoint": t.AllowsCustomEndpoint(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}
