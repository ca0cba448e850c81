package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleSignatureHeader carries the Paddle notification signature.
const PaddleSignatureHeader = "Paddle-Signature"

// PaddleConfig holds configuration for the Paddle ledger.
type PaddleConfig struct {
	APIKey         string   `env:"PADDLE_API_KEY,required"`
	WebhookSecrets []string `env:"PADDLE_WEBHOOK_SECRETS" envSeparator:","`
	Environment    string   `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleClient implements Provider on top of Paddle Billing.
// Paddle has no customer search index, so both search methods report
// ErrSearchUnavailable and callers fall back to listing by email.
type PaddleClient struct {
	sdk       *paddle.SDK
	verifiers []*paddle.WebhookVerifier
}

// NewPaddleClient creates a Paddle-backed ledger.
func NewPaddleClient(cfg PaddleConfig) (*PaddleClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: paddle api key is required", ErrInvalidConfig)
	}

	var (
		sdk *paddle.SDK
		err error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		sdk, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		sdk, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: unknown paddle environment %q", ErrInvalidConfig, cfg.Environment)
	}
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	c := &PaddleClient{sdk: sdk}
	for _, secret := range compactSecrets(cfg.WebhookSecrets) {
		c.verifiers = append(c.verifiers, paddle.NewWebhookVerifier(secret))
	}
	return c, nil
}

func (c *PaddleClient) SearchCustomersByMetadata(context.Context, string, string) ([]Customer, error) {
	return nil, ErrSearchUnavailable
}

func (c *PaddleClient) SearchCustomersByEmail(context.Context, string) ([]Customer, error) {
	return nil, ErrSearchUnavailable
}

func (c *PaddleClient) ListCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	res, err := c.sdk.CustomersClient.ListCustomers(ctx, &paddle.ListCustomersRequest{
		Email: []string{email},
	})
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}

	var out []Customer
	err = res.Iter(ctx, func(pc *paddle.Customer) (bool, error) {
		out = append(out, paddleCustomer(pc))
		return true, nil
	})
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return out, nil
}

func (c *PaddleClient) CreateCustomer(ctx context.Context, p CustomerParams) (Customer, error) {
	req := &paddle.CreateCustomerRequest{
		Email:      p.Email,
		CustomData: paddle.CustomData{},
	}
	if p.Name != "" {
		req.Name = paddle.PtrTo(p.Name)
	}
	for k, v := range p.Metadata {
		req.CustomData[k] = v
	}

	pc, err := c.sdk.CustomersClient.CreateCustomer(ctx, req)
	if err != nil {
		return Customer{}, errors.Join(ErrUnavailable, err)
	}
	return paddleCustomer(pc), nil
}

func (c *PaddleClient) ListSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	res, err := c.sdk.SubscriptionsClient.ListSubscriptions(ctx, &paddle.ListSubscriptionsRequest{
		CustomerID: []string{customerID},
	})
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}

	var out []Subscription
	err = res.Iter(ctx, func(ps *paddle.Subscription) (bool, error) {
		out = append(out, paddleSubscription(ps))
		return true, nil
	})
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return out, nil
}

func (c *PaddleClient) CreatePortalSession(ctx context.Context, req PortalRequest) (string, error) {
	in := &paddle.CreateCustomerPortalSessionRequest{CustomerID: req.CustomerID}
	if req.SubscriptionID != "" {
		in.SubscriptionIDs = []string{req.SubscriptionID}
	}

	sess, err := c.sdk.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, in)
	if err != nil {
		return "", errors.Join(ErrUnavailable, err)
	}

	url := sess.URLs.General.Overview
	for _, su := range sess.URLs.Subscriptions {
		if su.ID != req.SubscriptionID {
			continue
		}
		switch req.Intent {
		case PortalIntentCancel:
			if su.CancelSubscription != "" {
				url = su.CancelSubscription
			}
		case PortalIntentUpdate:
			if su.UpdateSubscriptionPaymentMethod != "" {
				url = su.UpdateSubscriptionPaymentMethod
			}
		}
	}
	if url == "" {
		return "", ErrNoPortalURL
	}
	return url, nil
}

func (c *PaddleClient) VerifyNotification(payload []byte, header http.Header) (Notification, error) {
	if len(c.verifiers) == 0 {
		return Notification{}, ErrNoSecrets
	}
	sig := header.Get(PaddleSignatureHeader)
	if sig == "" {
		return Notification{}, ErrInvalidSignature
	}

	for _, v := range c.verifiers {
		req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
		if err != nil {
			return Notification{}, errors.Join(ErrMalformedPayload, err)
		}
		req.Header.Set(PaddleSignatureHeader, sig)
		if ok, err := v.Verify(req); err == nil && ok {
			return c.DecodeNotification(payload)
		}
	}
	return Notification{}, ErrInvalidSignature
}

func (c *PaddleClient) DecodeNotification(payload []byte) (Notification, error) {
	var env struct {
		EventID    string          `json:"event_id"`
		EventType  string          `json:"event_type"`
		OccurredAt string          `json:"occurred_at"`
		Data       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return Notification{}, errors.Join(ErrMalformedPayload, err)
	}
	if env.EventID == "" {
		return Notification{}, ErrMalformedPayload
	}

	n := Notification{
		ID:           env.EventID,
		ProviderType: env.EventType,
		Type:         NotificationOther,
		CreatedAt:    parseRFC3339(env.OccurredAt),
		Payload:      payload,
	}

	switch {
	case strings.HasPrefix(env.EventType, "subscription."):
		var ps paddle.Subscription
		if err := json.Unmarshal(env.Data, &ps); err != nil {
			return Notification{}, errors.Join(ErrMalformedPayload, err)
		}
		sub := paddleSubscription(&ps)
		n.Subscription = &sub
		n.SubscriptionID = sub.ID
		n.CustomerID = sub.CustomerID
		switch env.EventType {
		case "subscription.created":
			n.Type = NotificationSubscriptionCreated
		case "subscription.canceled":
			if sub.Status == StatusCanceled {
				n.Type = NotificationSubscriptionDeleted
			} else {
				n.Type = NotificationSubscriptionUpdated
			}
		default:
			n.Type = NotificationSubscriptionUpdated
		}

	case env.EventType == "transaction.completed":
		var tx struct {
			CustomerID     string `json:"customer_id"`
			SubscriptionID string `json:"subscription_id"`
		}
		if err := json.Unmarshal(env.Data, &tx); err != nil {
			return Notification{}, errors.Join(ErrMalformedPayload, err)
		}
		n.Type = NotificationCheckoutCompleted
		n.CustomerID = tx.CustomerID
		n.SubscriptionID = tx.SubscriptionID
	}

	return n, nil
}

func paddleCustomer(pc *paddle.Customer) Customer {
	if pc == nil {
		return Customer{}
	}
	c := Customer{
		ID:        pc.ID,
		Email:     pc.Email,
		CreatedAt: parseRFC3339(pc.CreatedAt),
		Metadata:  map[string]string{},
	}
	for k, v := range pc.CustomData {
		if s, ok := v.(string); ok {
			c.Metadata[k] = s
		}
	}
	return c
}

func paddleSubscription(ps *paddle.Subscription) Subscription {
	if ps == nil {
		return Subscription{}
	}
	sub := Subscription{
		ID:         ps.ID,
		CustomerID: ps.CustomerID,
		Status:     ParseStatus(string(ps.Status)),
		CreatedAt:  parseRFC3339(ps.CreatedAt),
	}
	if p := ps.CurrentBillingPeriod; p != nil {
		sub.CurrentPeriodStart = parseRFC3339(p.StartsAt)
		sub.CurrentPeriodEnd = parseRFC3339(p.EndsAt)
	}
	if sc := ps.ScheduledChange; sc != nil && string(sc.Action) == "cancel" {
		sub.CancelAtPeriodEnd = true
		sub.CancelAt = parseRFC3339(sc.EffectiveAt)
	}
	for _, it := range ps.Items {
		price := Price{
			ID:       it.Price.ID,
			Currency: string(it.Price.UnitPrice.CurrencyCode),
		}
		if it.Price.Name != nil {
			price.Nickname = *it.Price.Name
		}
		if lk, ok := it.Price.CustomData["lookup_key"].(string); ok {
			price.LookupKey = lk
		}
		if it.Price.BillingCycle != nil {
			price.Interval = string(it.Price.BillingCycle.Interval)
		}
		price.UnitAmount, _ = strconv.ParseInt(it.Price.UnitPrice.Amount, 10, 64)
		sub.Items = append(sub.Items, Item{Price: price})
	}
	return sub
}

func parseRFC3339(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
