package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// SubscriptionFetcher loads a subscription from the payment provider.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// StripeSubscriptions fetches subscriptions through the Stripe API.
type StripeSubscriptions struct {
	api *client.API
}

// NewStripeSubscriptions constructs a fetcher for secretKey. It returns nil when no key is configured.
func NewStripeSubscriptions(secretKey string) *StripeSubscriptions {
	if secretKey == "" {
		return nil
	}
	return &StripeSubscriptions{api: client.New(secretKey, nil)}
}

// GetSubscription implements SubscriptionFetcher.
func (s *StripeSubscriptions) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	if s == nil || s.api == nil {
		return nil, fmt.Errorf("billing: stripe client not configured")
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, errGet := s.api.Subscriptions.Get(id, params)
	if errGet != nil {
		return nil, fmt.Errorf("billing: get subscription %s: %w", id, errGet)
	}
	return sub, nil
}
