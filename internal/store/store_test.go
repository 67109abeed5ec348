package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/owaiken/gateway/internal/db"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/tier"

	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedAccount(t *testing.T, s *GormAccountStore, account *models.Account) *models.Account {
	t.Helper()
	if err := s.Create(context.Background(), account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func TestFindByIdentity(t *testing.T) {
	s := NewGormAccountStore(openTestDB(t))
	seedAccount(t, s, &models.Account{IdentityKey: "user_1", Tier: tier.Pro})

	account, err := s.FindByIdentity(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if account.Tier != tier.Pro {
		t.Fatalf("expected pro tier, got %q", account.Tier)
	}
	if account.SubscriptionStatus != models.SubscriptionStatusInactive {
		t.Fatalf("expected inactive default status, got %q", account.SubscriptionStatus)
	}

	if _, errMissing := s.FindByIdentity(context.Background(), "nobody"); !errors.Is(errMissing, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", errMissing)
	}
}

func TestUpdateOverride_KeepsKeyWhenEmpty(t *testing.T) {
	s := NewGormAccountStore(openTestDB(t))
	account := seedAccount(t, s, &models.Account{IdentityKey: "ent", Tier: tier.Enterprise})
	ctx := context.Background()

	if err := s.UpdateOverride(ctx, account.ID, Override{Enabled: true, Endpoint: "https://n8n.example", EndpointSet: true, APIKey: "sbx:abc"}); err != nil {
		t.Fatalf("update override: %v", err)
	}
	if err := s.UpdateOverride(ctx, account.ID, Override{Enabled: true, Endpoint: "https://n8n2.example", EndpointSet: true}); err != nil {
		t.Fatalf("update override: %v", err)
	}
	got, err := s.FindByIdentity(ctx, "ent")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.CustomN8nAPIKey != "sbx:abc" || got.CustomN8nEndpoint != "https://n8n2.example" || !got.UseCustomN8n {
		t.Fatalf("unexpected override state: %+v", got)
	}

	if err := s.UpdateOverride(ctx, account.ID, Override{Enabled: false, ClearKey: true}); err != nil {
		t.Fatalf("clear override: %v", err)
	}
	got, _ = s.FindByIdentity(ctx, "ent")
	if got.CustomN8nAPIKey != "" || got.UseCustomN8n {
		t.Fatalf("expected cleared override, got %+v", got)
	}
	if got.CustomN8nEndpoint != "https://n8n2.example" {
		t.Fatalf("expected endpoint kept when not set, got %q", got.CustomN8nEndpoint)
	}

	if err := s.UpdateOverride(ctx, account.ID, Override{EndpointSet: true}); err != nil {
		t.Fatalf("clear endpoint: %v", err)
	}
	got, _ = s.FindByIdentity(ctx, "ent")
	if got.CustomN8nEndpoint != "" {
		t.Fatalf("expected cleared endpoint, got %q", got.CustomN8nEndpoint)
	}

	if errMissing := s.UpdateOverride(ctx, 9999, Override{}); !errors.Is(errMissing, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", errMissing)
	}
}

func TestApplyCheckout_ResetsMessageCount(t *testing.T) {
	s := NewGormAccountStore(openTestDB(t))
	seedAccount(t, s, &models.Account{IdentityKey: "buyer", MessageCount: 42, WorkflowCount: 7})
	ctx := context.Background()

	err := s.ApplyCheckout(ctx, "buyer", Checkout{
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Tier:           tier.Pro,
		Status:         models.SubscriptionStatusActive,
	})
	if err != nil {
		t.Fatalf("apply checkout: %v", err)
	}
	got, _ := s.FindByIdentity(ctx, "buyer")
	if got.MessageCount != 0 || got.WorkflowCount != 7 {
		t.Fatalf("expected only message count reset, got %d/%d", got.MessageCount, got.WorkflowCount)
	}
	if got.Tier != tier.Pro || got.StripeSubscriptionID != "sub_1" || got.StripeCustomerID != "cus_1" {
		t.Fatalf("unexpected account after checkout: %+v", got)
	}

	if errMissing := s.ApplyCheckout(ctx, "ghost", Checkout{}); !errors.Is(errMissing, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", errMissing)
	}
}

func TestResetMessageCountBySubscription_OnlyMatchingAccount(t *testing.T) {
	s := NewGormAccountStore(openTestDB(t))
	seedAccount(t, s, &models.Account{IdentityKey: "a", StripeSubscriptionID: "sub_a", MessageCount: 10, WorkflowCount: 3})
	seedAccount(t, s, &models.Account{IdentityKey: "b", StripeSubscriptionID: "sub_b", MessageCount: 20, WorkflowCount: 5})
	ctx := context.Background()

	affected, err := s.ResetMessageCountBySubscription(ctx, "sub_a")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 row affected, got %d", affected)
	}
	a, _ := s.FindByIdentity(ctx, "a")
	b, _ := s.FindByIdentity(ctx, "b")
	if a.MessageCount != 0 || a.WorkflowCount != 3 {
		t.Fatalf("expected a message count reset, got %d/%d", a.MessageCount, a.WorkflowCount)
	}
	if b.MessageCount != 20 || b.WorkflowCount != 5 {
		t.Fatalf("expected b untouched, got %d/%d", b.MessageCount, b.WorkflowCount)
	}

	if affected, _ = s.ResetMessageCountBySubscription(ctx, ""); affected != 0 {
		t.Fatalf("expected empty subscription to match nothing, got %d", affected)
	}
}

func TestCancelSubscription(t *testing.T) {
	s := NewGormAccountStore(openTestDB(t))
	seedAccount(t, s, &models.Account{
		IdentityKey:          "c",
		Tier:                 tier.Enterprise,
		SubscriptionStatus:   models.SubscriptionStatusActive,
		StripeSubscriptionID: "sub_c",
		MessageCount:         5,
	})
	ctx := context.Background()

	if _, err := s.CancelSubscription(ctx, "sub_c"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := s.FindByIdentity(ctx, "c")
	if got.Tier != tier.Standard || got.SubscriptionStatus != models.SubscriptionStatusCanceled {
		t.Fatalf("unexpected state after cancel: %+v", got)
	}
	if got.MessageCount != 5 {
		t.Fatalf("expected counters preserved on cancel, got %d", got.MessageCount)
	}
}
