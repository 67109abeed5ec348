package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/owaiken/gateway/internal/apperr"

	"github.com/gin-gonic/gin"
)

type stubEvents struct {
	gotPayload   string
	gotSignature string
	err          error
}

func (s *stubEvents) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	s.gotPayload = string(payload)
	s.gotSignature = signature
	return s.err
}

func serve(events EventHandler, body, signature string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterWebhookRoutes(r, events)
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(StripeSignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhook_PassesRawBodyAndSignature(t *testing.T) {
	events := &stubEvents{}
	rec := serve(events, `{"id":"evt_1"}`, "t=1,v1=abc")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if events.gotPayload != `{"id":"evt_1"}` || events.gotSignature != "t=1,v1=abc" {
		t.Fatalf("unexpected handler input: %+v", events)
	}
}

func TestStripeWebhook_InvalidSignatureIs400(t *testing.T) {
	events := &stubEvents{err: apperr.Wrap(apperr.KindInvalidSignature, "Webhook signature verification failed", errors.New("bad sig"))}
	rec := serve(events, `{}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Webhook signature verification failed") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestStripeWebhook_ApplyFailureIs500(t *testing.T) {
	events := &stubEvents{err: apperr.Wrap(apperr.KindInternal, "Error updating user subscription", errors.New("db down"))}
	rec := serve(events, `{}`, "t=1,v1=abc")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
