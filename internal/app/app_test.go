package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/owaiken/gateway/internal/config"
	"github.com/owaiken/gateway/internal/db"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/tier"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const testSecret = "app-secret"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func testSettings(t *testing.T, chatURL string) Settings {
	t.Helper()
	table, err := tier.NewTable(tier.DefaultPolicies())
	if err != nil {
		t.Fatalf("tier table: %v", err)
	}
	return Settings{
		Server:   config.ServerConfig{AllowedOrigins: []string{"https://app.example"}},
		Identity: config.IdentityConfig{Secret: testSecret, Leeway: time.Second},
		Upstream: config.UpstreamConfig{
			ChatURL:           chatURL,
			ChatAPIKey:        "chat-key",
			AutomationBaseURL: "http://automation.invalid",
			Timeout:           5 * time.Second,
		},
		Billing: config.BillingConfig{WebhookSecret: "whsec_test"},
		Tiers:   table,
	}
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + token
}

func TestProvisionAccountWithConn(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	account, err := ProvisionAccountWithConn(ctx, conn, ProvisionRequest{IdentityKey: " user-1 ", Email: "a@example.com", Tier: "pro"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if account.IdentityKey != "user-1" || account.Tier != tier.Pro {
		t.Fatalf("unexpected account: %+v", account)
	}
	if account.SubscriptionStatus != models.SubscriptionStatusInactive || account.MessageCount != 0 {
		t.Fatalf("unexpected initial state: %+v", account)
	}

	if _, errDup := ProvisionAccountWithConn(ctx, conn, ProvisionRequest{IdentityKey: "user-1"}); !errors.Is(errDup, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", errDup)
	}
	if _, errTier := ProvisionAccountWithConn(ctx, conn, ProvisionRequest{IdentityKey: "user-2", Tier: "gold"}); !errors.Is(errTier, tier.ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", errTier)
	}
	if _, errEmpty := ProvisionAccountWithConn(ctx, conn, ProvisionRequest{}); errEmpty == nil {
		t.Fatalf("expected error for empty identity key")
	}

	count, err := CountAccounts(ctx, conn)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 account, got %d", count)
	}
}

func TestCountAccounts_NoTable(t *testing.T) {
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	count, err := CountAccounts(context.Background(), conn)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestNewServer_RequiresTierTable(t *testing.T) {
	st := testSettings(t, "http://chat.invalid")
	st.Tiers = nil
	if _, err := NewServer(openTestDB(t), st); err == nil {
		t.Fatalf("expected error without tier table")
	}
}

func TestNewServer_ServesRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	chat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer chat.Close()

	conn := openTestDB(t)
	if _, err := ProvisionAccountWithConn(context.Background(), conn, ProvisionRequest{IdentityKey: "user-1"}); err != nil {
		t.Fatalf("provision: %v", err)
	}
	server, err := NewServer(conn, testSettings(t, chat.URL))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer func() { _ = server.Close() }()

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := serve(httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}

	metricsRec := serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if metricsRec.Code != http.StatusOK || !strings.Contains(metricsRec.Body.String(), "gateway_rate_limited_total") {
		t.Fatalf("metrics: unexpected response %d", metricsRec.Code)
	}

	if rec := serve(httptest.NewRequest(http.MethodGet, "/nope", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: expected 404, got %d", rec.Code)
	}

	chatReq := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	chatReq.Header.Set("Content-Type", "application/json")
	chatReq.Header.Set("Authorization", bearer(t, "user-1"))
	chatRec := serve(chatReq)
	if chatRec.Code != http.StatusOK {
		body, _ := io.ReadAll(chatRec.Body)
		t.Fatalf("chat: expected 200, got %d: %s", chatRec.Code, body)
	}

	var account models.Account
	if errFind := conn.Where("identity_key = ?", "user-1").First(&account).Error; errFind != nil {
		t.Fatalf("load account: %v", errFind)
	}
	if account.MessageCount != 1 {
		t.Fatalf("expected message count 1, got %d", account.MessageCount)
	}

	webhookReq := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(`{}`))
	webhookReq.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	if rec := serve(webhookReq); rec.Code != http.StatusBadRequest {
		t.Fatalf("webhook: expected 400 for bad signature, got %d", rec.Code)
	}
}

func TestNewServer_CORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server, err := NewServer(openTestDB(t), testSettings(t, "http://chat.invalid"))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer func() { _ = server.Close() }()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("expected allowed origin echo, got %q", got)
	}

	blocked := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	blocked.Header.Set("Origin", "https://evil.example")
	blocked.Header.Set("Access-Control-Request-Method", http.MethodPost)
	blockedRec := httptest.NewRecorder()
	server.Handler.ServeHTTP(blockedRec, blocked)
	if got := blockedRec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin for unknown origin, got %q", got)
	}
}
