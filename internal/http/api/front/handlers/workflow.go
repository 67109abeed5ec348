package handlers

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/owaiken/gateway/internal/apperr"
	"github.com/owaiken/gateway/internal/models"

	"github.com/gin-gonic/gin"
)

// workflowRequest defines the request body for workflow executions.
type workflowRequest struct {
	WorkflowID string          `json:"workflowId"`
	Inputs     json.RawMessage `json:"inputs"`
}

// Workflow forwards a workflow execution to the managed or customer automation endpoint.
func (h *ProxyHandler) Workflow(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	var body workflowRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, validationError("Invalid request body", errBind))
		return
	}
	workflowID := strings.TrimSpace(body.WorkflowID)
	if workflowID == "" {
		respondError(c, apperr.New(apperr.KindValidation, "Workflow ID is required"))
		return
	}

	decision, errGate := h.gate.Evaluate(account, models.UsageActionWorkflow, workflowID)
	if errGate != nil {
		respondError(c, errGate)
		return
	}

	payload := bytes.TrimSpace(body.Inputs)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = []byte("{}")
	}
	h.forward(c, decision, payload)
}
