// Package billing keeps account tiers, statuses and counters in sync with payment provider webhooks.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/owaiken/gateway/internal/apperr"
	"github.com/owaiken/gateway/internal/metrics"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/store"
	"github.com/owaiken/gateway/internal/tier"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Event types handled by the synchronizer.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.payment_succeeded"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// AccountWriter is the account persistence used by the synchronizer.
type AccountWriter interface {
	ApplyCheckout(ctx context.Context, identityKey string, checkout store.Checkout) error
	ResetMessageCountBySubscription(ctx context.Context, subscriptionID string) (int64, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, t tier.Tier, status models.SubscriptionStatus) (int64, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (int64, error)
}

// Options configures a Synchronizer.
type Options struct {
	WebhookSecret string
	Tolerance     time.Duration
	Prices        PriceMap
	Fetcher       SubscriptionFetcher
}

// Synchronizer verifies and applies payment provider webhook events.
type Synchronizer struct {
	accounts  AccountWriter
	fetcher   SubscriptionFetcher
	prices    PriceMap
	secret    string
	tolerance time.Duration
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(accounts AccountWriter, opts Options) (*Synchronizer, error) {
	if accounts == nil {
		return nil, fmt.Errorf("billing: account writer is nil")
	}
	secret := strings.TrimSpace(opts.WebhookSecret)
	if secret == "" {
		return nil, fmt.Errorf("billing: webhook secret is empty")
	}
	tolerance := opts.Tolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Synchronizer{
		accounts:  accounts,
		fetcher:   opts.Fetcher,
		prices:    opts.Prices,
		secret:    secret,
		tolerance: tolerance,
	}, nil
}

// HandleWebhook verifies signature over payload and applies the event.
// Unverifiable payloads return an InvalidSignature error and change nothing.
func (s *Synchronizer) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, errVerify := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		Tolerance:                s.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if errVerify != nil {
		metrics.BillingEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		return apperr.Wrap(apperr.KindInvalidSignature, "Webhook signature verification failed", errVerify)
	}

	eventType := string(event.Type)
	logEntry := log.WithFields(log.Fields{"event_id": event.ID, "event_type": eventType})

	var errApply error
	switch eventType {
	case EventCheckoutCompleted:
		errApply = s.checkoutCompleted(ctx, event)
	case EventInvoicePaid:
		errApply = s.invoicePaid(ctx, event)
	case EventSubscriptionUpdated:
		errApply = s.subscriptionUpdated(ctx, event)
	case EventSubscriptionDeleted:
		errApply = s.subscriptionDeleted(ctx, event)
	default:
		metrics.BillingEvents.WithLabelValues(eventType, "ignored").Inc()
		logEntry.Debug("billing: ignoring unhandled event type")
		return nil
	}
	if errApply != nil {
		metrics.BillingEvents.WithLabelValues(eventType, "error").Inc()
		logEntry.WithError(errApply).Error("billing: apply event failed")
		return apperr.Wrap(apperr.KindInternal, "Error updating user subscription", errApply)
	}
	metrics.BillingEvents.WithLabelValues(eventType, "ok").Inc()
	logEntry.Info("billing: event applied")
	return nil
}

func (s *Synchronizer) checkoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if errUnmarshal := unmarshalObject(event, &session); errUnmarshal != nil {
		return errUnmarshal
	}
	identityKey := strings.TrimSpace(session.ClientReferenceID)
	if identityKey == "" {
		log.WithField("session", session.ID).Warn("billing: checkout without client reference, skipping")
		return nil
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		log.WithField("session", session.ID).Warn("billing: checkout without subscription, skipping")
		return nil
	}

	sub := session.Subscription
	if sub.Items == nil {
		if s.fetcher == nil {
			return fmt.Errorf("billing: subscription %s not expanded and no fetcher configured", sub.ID)
		}
		fetched, errFetch := s.fetcher.GetSubscription(ctx, sub.ID)
		if errFetch != nil {
			return errFetch
		}
		sub = fetched
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	errApply := s.accounts.ApplyCheckout(ctx, identityKey, store.Checkout{
		CustomerID:     customerID,
		SubscriptionID: sub.ID,
		Tier:           s.tierFor(sub),
		Status:         models.SubscriptionStatusActive,
	})
	if errors.Is(errApply, store.ErrAccountNotFound) {
		log.WithField("identity", identityKey).Warn("billing: checkout for unknown account, skipping")
		return nil
	}
	return errApply
}

func (s *Synchronizer) invoicePaid(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if errUnmarshal := unmarshalObject(event, &invoice); errUnmarshal != nil {
		return errUnmarshal
	}
	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		return nil
	}
	affected, errReset := s.accounts.ResetMessageCountBySubscription(ctx, invoice.Subscription.ID)
	if errReset != nil {
		return errReset
	}
	if affected == 0 {
		log.WithField("subscription", invoice.Subscription.ID).Warn("billing: paid invoice for unknown subscription")
	}
	return nil
}

func (s *Synchronizer) subscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if errUnmarshal := unmarshalObject(event, &sub); errUnmarshal != nil {
		return errUnmarshal
	}
	if sub.ID == "" {
		return fmt.Errorf("billing: subscription event without id")
	}
	_, errUpdate := s.accounts.UpdateSubscription(ctx, sub.ID, s.tierFor(&sub), StatusFor(sub.Status))
	return errUpdate
}

func (s *Synchronizer) subscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if errUnmarshal := unmarshalObject(event, &sub); errUnmarshal != nil {
		return errUnmarshal
	}
	if sub.ID == "" {
		return fmt.Errorf("billing: subscription event without id")
	}
	_, errCancel := s.accounts.CancelSubscription(ctx, sub.ID)
	return errCancel
}

// tierFor maps the subscription's price to a tier, warning on prices outside the configured plans.
func (s *Synchronizer) tierFor(sub *stripe.Subscription) tier.Tier {
	priceID := firstPriceID(sub)
	t, known := s.prices.Resolve(priceID)
	if !known {
		log.WithFields(log.Fields{"subscription": sub.ID, "price": priceID}).Warn("billing: unrecognized price, assigning standard tier")
	}
	return t
}

func unmarshalObject(event stripe.Event, out any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("billing: event %s has no data", event.ID)
	}
	if errUnmarshal := json.Unmarshal(event.Data.Raw, out); errUnmarshal != nil {
		return fmt.Errorf("billing: decode %s: %w", event.Type, errUnmarshal)
	}
	return nil
}
