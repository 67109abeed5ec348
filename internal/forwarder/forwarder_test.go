package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/owaiken/gateway/internal/apperr"
	"github.com/owaiken/gateway/internal/db"
	"github.com/owaiken/gateway/internal/gate"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/tier"
	"github.com/owaiken/gateway/internal/usage"

	"gorm.io/gorm"
)

type fixture struct {
	conn    *gorm.DB
	gate    *gate.Gate
	account *models.Account
}

func newFixture(t *testing.T, serverURL string, account *models.Account) *fixture {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "forwarder.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if errCreate := conn.Create(account).Error; errCreate != nil {
		t.Fatalf("create account: %v", errCreate)
	}
	table, err := tier.NewTable(tier.DefaultPolicies())
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	g, err := gate.New(table, gate.Endpoints{
		ChatURL:           serverURL + "/chat",
		ChatAPIKey:        "chat-key",
		AutomationBaseURL: serverURL,
		AutomationAPIKey:  "automation-key",
	}, nil, usage.NewRecorder(conn))
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return &fixture{conn: conn, gate: g, account: account}
}

func (f *fixture) reload(t *testing.T) models.Account {
	t.Helper()
	var account models.Account
	if err := f.conn.First(&account, f.account.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	return account
}

func (f *fixture) eventCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := f.conn.Model(&models.UsageEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func TestForward_ChatSuccessIncrementsOnce(t *testing.T) {
	var gotHeaders http.Header
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}]}`))
	}))
	defer server.Close()

	fx := newFixture(t, server.URL, &models.Account{IdentityKey: "u1", Tier: tier.Standard, MessageCount: 5})
	decision, err := fx.gate.Evaluate(fx.account, models.UsageActionChat, "openai/gpt-3.5-turbo")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	payload, err := ChatPayload(decision.TargetID, []ChatMessage{{Role: "user", Content: "hello"}}, nil, nil)
	if err != nil {
		t.Fatalf("chat payload: %v", err)
	}

	fw := New(Options{PublicBaseURL: "https://app.example"})
	resp, err := fw.Forward(context.Background(), decision, payload)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}

	if got := gotHeaders.Get("Authorization"); got != "Bearer chat-key" {
		t.Fatalf("unexpected authorization %q", got)
	}
	if got := gotHeaders.Get("HTTP-Referer"); got != "https://app.example" {
		t.Fatalf("unexpected referer %q", got)
	}
	if got := gotHeaders.Get("X-Title"); got != "Owaiken Chat" {
		t.Fatalf("unexpected title %q", got)
	}
	if gotBody["temperature"] != 0.7 || gotBody["max_tokens"] != float64(1000) {
		t.Fatalf("expected defaults in body, got %v", gotBody)
	}

	if got := fx.reload(t); got.MessageCount != 6 {
		t.Fatalf("expected message_count 6, got %d", got.MessageCount)
	}
	if n := fx.eventCount(t); n != 1 {
		t.Fatalf("expected 1 usage event, got %d", n)
	}
}

func TestForward_DownstreamErrorLeavesCountersUnchanged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"workflow crashed"}`))
	}))
	defer server.Close()

	fx := newFixture(t, server.URL, &models.Account{IdentityKey: "u2", Tier: tier.Pro, MessageCount: 2, WorkflowCount: 1})
	decision, err := fx.gate.Evaluate(fx.account, models.UsageActionWorkflow, "data-analysis")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	_, err = New(Options{}).Forward(context.Background(), decision, []byte(`{"q":1}`))
	if apperr.KindOf(err) != apperr.KindDownstream {
		t.Fatalf("expected downstream error, got %v", err)
	}
	if status := apperr.HTTPStatus(err); status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 passthrough, got %d", status)
	}
	var downstream *DownstreamError
	if !errors.As(err, &downstream) || string(downstream.Body) != `{"message":"workflow crashed"}` {
		t.Fatalf("expected DownstreamError with body, got %v", err)
	}
	envelope := apperr.Envelope(err)
	details, ok := envelope["details"].(map[string]any)
	if !ok || details["message"] != "workflow crashed" {
		t.Fatalf("expected downstream body in details, got %v", envelope)
	}

	got := fx.reload(t)
	if got.MessageCount != 2 || got.WorkflowCount != 1 {
		t.Fatalf("expected counters unchanged, got %d/%d", got.MessageCount, got.WorkflowCount)
	}
	if n := fx.eventCount(t); n != 0 {
		t.Fatalf("expected no usage events, got %d", n)
	}
}

func TestForward_WorkflowSuccessIncrementsBoth(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	fx := newFixture(t, server.URL, &models.Account{IdentityKey: "u3", Tier: tier.Standard})
	decision, err := fx.gate.Evaluate(fx.account, models.UsageActionWorkflow, "simple-rag")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err = New(Options{}).Forward(context.Background(), decision, []byte(`{"question":"x"}`)); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if gotPath != "/webhook/simple-rag" || gotAuth != "Bearer automation-key" {
		t.Fatalf("unexpected request path=%q auth=%q", gotPath, gotAuth)
	}
	got := fx.reload(t)
	if got.MessageCount != 1 || got.WorkflowCount != 1 {
		t.Fatalf("expected 1/1, got %d/%d", got.MessageCount, got.WorkflowCount)
	}
}

func TestForward_UnreachableIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	fx := newFixture(t, url, &models.Account{IdentityKey: "u4"})
	decision, err := fx.gate.Evaluate(fx.account, models.UsageActionChat, "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	_, err = New(Options{}).Forward(context.Background(), decision, []byte(`{}`))
	if apperr.KindOf(err) != apperr.KindUpstreamUnreachable {
		t.Fatalf("expected upstream unreachable, got %v", err)
	}
	if status := apperr.HTTPStatus(err); status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if got := fx.reload(t); got.MessageCount != 0 {
		t.Fatalf("expected no increment, got %d", got.MessageCount)
	}
}

func TestChatPayload_KeepsExplicitValues(t *testing.T) {
	temperature := 0.0
	maxTokens := 50
	raw, err := ChatPayload("m", nil, &temperature, &maxTokens)
	if err != nil {
		t.Fatalf("chat payload: %v", err)
	}
	var body map[string]any
	if errUnmarshal := json.Unmarshal(raw, &body); errUnmarshal != nil {
		t.Fatalf("unmarshal: %v", errUnmarshal)
	}
	if body["temperature"] != 0.0 || body["max_tokens"] != float64(50) {
		t.Fatalf("unexpected body %v", body)
	}
}
