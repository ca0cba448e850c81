package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeConfig holds configuration for the Stripe ledger.
type StripeConfig struct {
	SecretKey      string   `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecrets []string `env:"STRIPE_WEBHOOK_SECRETS" envSeparator:","`
	PortalConfigID string   `env:"STRIPE_PORTAL_CONFIGURATION"`
}

// StripeClient implements Provider on top of the Stripe API.
type StripeClient struct {
	api     *client.API
	secrets []string
	portal  string
}

// NewStripeClient creates a Stripe-backed ledger.
func NewStripeClient(cfg StripeConfig) (*StripeClient, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: stripe secret key is required", ErrInvalidConfig)
	}
	return &StripeClient{
		api:     client.New(cfg.SecretKey, nil),
		secrets: compactSecrets(cfg.WebhookSecrets),
		portal:  cfg.PortalConfigID,
	}, nil
}

func (c *StripeClient) SearchCustomersByMetadata(ctx context.Context, key, value string) ([]Customer, error) {
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf("metadata['%s']:'%s'", key, escapeSearch(value)),
		},
	}
	return c.search(params)
}

func (c *StripeClient) SearchCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf("email:'%s'", escapeSearch(email)),
		},
	}
	return c.search(params)
}

func (c *StripeClient) search(params *stripe.CustomerSearchParams) ([]Customer, error) {
	var out []Customer
	it := c.api.Customers.Search(params)
	for it.Next() {
		out = append(out, stripeCustomer(it.Customer()))
	}
	if err := it.Err(); err != nil {
		return nil, errors.Join(ErrSearchUnavailable, err)
	}
	return out, nil
}

func (c *StripeClient) ListCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var out []Customer
	it := c.api.Customers.List(params)
	for it.Next() {
		out = append(out, stripeCustomer(it.Customer()))
	}
	if err := it.Err(); err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return out, nil
}

func (c *StripeClient) CreateCustomer(ctx context.Context, p CustomerParams) (Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if p.Email != "" {
		params.Email = stripe.String(p.Email)
	}
	if p.Name != "" {
		params.Name = stripe.String(p.Name)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return Customer{}, errors.Join(ErrUnavailable, err)
	}
	return stripeCustomer(cust), nil
}

func (c *StripeClient) ListSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	params.AddExpand("data.items.data.price")

	var out []Subscription
	it := c.api.Subscriptions.List(params)
	for it.Next() {
		out = append(out, stripeSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return out, nil
}

func (c *StripeClient) CreatePortalSession(ctx context.Context, req PortalRequest) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer: stripe.String(req.CustomerID),
	}
	params.Context = ctx
	if req.ReturnURL != "" {
		params.ReturnURL = stripe.String(req.ReturnURL)
	}
	if c.portal != "" {
		params.Configuration = stripe.String(c.portal)
	}

	if req.SubscriptionID != "" {
		switch req.Intent {
		case PortalIntentCancel:
			params.FlowData = &stripe.BillingPortalSessionFlowDataParams{
				Type: stripe.String(string(stripe.BillingPortalSessionFlowTypeSubscriptionCancel)),
				SubscriptionCancel: &stripe.BillingPortalSessionFlowDataSubscriptionCancelParams{
					Subscription: stripe.String(req.SubscriptionID),
				},
			}
		case PortalIntentUpdate:
			params.FlowData = &stripe.BillingPortalSessionFlowDataParams{
				Type: stripe.String(string(stripe.BillingPortalSessionFlowTypeSubscriptionUpdate)),
				SubscriptionUpdate: &stripe.BillingPortalSessionFlowDataSubscriptionUpdateParams{
					Subscription: stripe.String(req.SubscriptionID),
				},
			}
		}
		if params.FlowData != nil && req.ReturnURL != "" {
			params.FlowData.AfterCompletion = &stripe.BillingPortalSessionFlowDataAfterCompletionParams{
				Type: stripe.String("redirect"),
				Redirect: &stripe.BillingPortalSessionFlowDataAfterCompletionRedirectParams{
					ReturnURL: stripe.String(req.ReturnURL),
				},
			}
		}
	}

	sess, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", errors.Join(ErrUnavailable, err)
	}
	if sess.URL == "" {
		return "", ErrNoPortalURL
	}
	return sess.URL, nil
}

func stripeCustomer(c *stripe.Customer) Customer {
	if c == nil {
		return Customer{}
	}
	return Customer{
		ID:        c.ID,
		Email:     c.Email,
		Metadata:  c.Metadata,
		CreatedAt: unixTime(c.Created),
	}
}

func stripeSubscription(s *stripe.Subscription) Subscription {
	if s == nil {
		return Subscription{}
	}
	sub := Subscription{
		ID:                 s.ID,
		Status:             ParseStatus(string(s.Status)),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CancelAt:           unixTime(s.CancelAt),
		CurrentPeriodStart: unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(s.CurrentPeriodEnd),
		CreatedAt:          unixTime(s.Created),
	}
	if s.Customer != nil {
		sub.CustomerID = s.Customer.ID
	}
	if s.Items != nil {
		for _, it := range s.Items.Data {
			if it == nil {
				continue
			}
			item := Item{ID: it.ID}
			if p := it.Price; p != nil {
				item.Price = Price{
					ID:         p.ID,
					Nickname:   p.Nickname,
					LookupKey:  p.LookupKey,
					UnitAmount: p.UnitAmount,
					Currency:   string(p.Currency),
				}
				if p.Recurring != nil {
					item.Price.Interval = string(p.Recurring.Interval)
				}
			}
			sub.Items = append(sub.Items, item)
		}
	}
	return sub
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// escapeSearch quotes a value for the Stripe search query language.
func escapeSearch(v string) string {
	return strings.ReplaceAll(v, "'", "\\'")
}

func compactSecrets(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
