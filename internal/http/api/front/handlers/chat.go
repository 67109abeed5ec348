package handlers

import (
	"context"
	"strings"

	"github.com/owaiken/gateway/internal/forwarder"
	"github.com/owaiken/gateway/internal/gate"
	"github.com/owaiken/gateway/internal/models"

	"github.com/gin-gonic/gin"
)

// Evaluator decides whether an account may perform a call.
type Evaluator interface {
	Evaluate(account *models.Account, action models.UsageAction, targetID string) (*gate.Decision, error)
}

// Forwarder performs the downstream call for an allowed decision.
type Forwarder interface {
	Forward(ctx context.Context, decision *gate.Decision, payload []byte) (*forwarder.Response, error)
}

// ProxyHandler serves the metered chat and workflow proxy endpoints.
type ProxyHandler struct {
	gate      Evaluator
	forwarder Forwarder
}

// NewProxyHandler constructs a ProxyHandler.
func NewProxyHandler(g Evaluator, f Forwarder) *ProxyHandler {
	return &ProxyHandler{gate: g, forwarder: f}
}

// chatRequest defines the request body for chat completions.
type chatRequest struct {
	Messages    []forwarder.ChatMessage `json:"messages" binding:"required,dive"`
	Model       string                  `json:"model"`
	Temperature *float64                `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   *int                    `json:"max_tokens" binding:"omitempty,gte=0"`
}

// Chat forwards a chat completion for the caller when their tier allows it.
func (h *ProxyHandler) Chat(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	var body chatRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, validationError("Invalid request body", errBind))
		return
	}

	decision, errGate := h.gate.Evaluate(account, models.UsageActionChat, strings.TrimSpace(body.Model))
	if errGate != nil {
		respondError(c, errGate)
		return
	}

	payload, errPayload := forwarder.ChatPayload(decision.TargetID, body.Messages, body.Temperature, body.MaxTokens)
	if errPayload != nil {
		respondError(c, errPayload)
		return
	}
	h.forward(c, decision, payload)
}

func (h *ProxyHandler) forward(c *gin.Context, decision *gate.Decision, payload []byte) {
	resp, errForward := h.forwarder.Forward(c.Request.Context(), decision, payload)
	if errForward != nil {
		respondError(c, errForward)
		return
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Header("X-Request-ID", decision.RequestID)
	c.Data(resp.Status, contentType, resp.Body)
}
