package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/owaiken/gateway/internal/apperr"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// maxPayloadBytes caps webhook bodies read from the payment provider.
const maxPayloadBytes = 1 << 20

// StripeSignatureHeader carries the payment provider signature.
const StripeSignatureHeader = "Stripe-Signature"

// EventHandler verifies and applies a signed webhook payload.
type EventHandler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// StripeHandler receives payment provider webhooks.
type StripeHandler struct {
	events EventHandler
}

// NewStripeHandler constructs a StripeHandler.
func NewStripeHandler(events EventHandler) *StripeHandler {
	return &StripeHandler{events: events}
}

// Handle verifies and applies one webhook delivery.
func (h *StripeHandler) Handle(c *gin.Context) {
	payload, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if errHandle := h.events.HandleWebhook(c.Request.Context(), payload, c.GetHeader(StripeSignatureHeader)); errHandle != nil {
		if apperr.KindOf(errHandle) == apperr.KindInvalidSignature {
			log.WithError(errHandle).Warn("stripe webhook: signature verification failed")
		}
		c.JSON(apperr.HTTPStatus(errHandle), apperr.Envelope(errHandle))
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// RegisterWebhookRoutes registers payment provider webhook routes.
func RegisterWebhookRoutes(r *gin.Engine, events EventHandler) {
	if r == nil || events == nil {
		return
	}
	stripeHandler := NewStripeHandler(events)
	r.POST("/api/stripe/webhook", stripeHandler.Handle)
}
