package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeSignatureHeader carries the Stripe notification signature.
const StripeSignatureHeader = "Stripe-Signature"

func (c *StripeClient) VerifyNotification(payload []byte, header http.Header) (Notification, error) {
	if len(c.secrets) == 0 {
		return Notification{}, ErrNoSecrets
	}
	sig := header.Get(StripeSignatureHeader)
	if sig == "" {
		return Notification{}, ErrInvalidSignature
	}

	var errs []error
	for _, secret := range c.secrets {
		event, err := webhook.ConstructEventWithOptions(payload, sig, secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return stripeNotification(event, payload)
	}
	return Notification{}, errors.Join(ErrInvalidSignature, errors.Join(errs...))
}

func (c *StripeClient) DecodeNotification(payload []byte) (Notification, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Notification{}, errors.Join(ErrMalformedPayload, err)
	}
	return stripeNotification(event, payload)
}

func stripeNotification(event stripe.Event, payload []byte) (Notification, error) {
	if event.ID == "" || event.Data == nil {
		return Notification{}, ErrMalformedPayload
	}

	n := Notification{
		ID:           event.ID,
		ProviderType: string(event.Type),
		Type:         NotificationOther,
		CreatedAt:    unixTime(event.Created),
		Payload:      payload,
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted,
		stripe.EventTypeCustomerSubscriptionPaused,
		stripe.EventTypeCustomerSubscriptionResumed:
		var s stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return Notification{}, errors.Join(ErrMalformedPayload, err)
		}
		sub := stripeSubscription(&s)
		n.Subscription = &sub
		n.SubscriptionID = sub.ID
		n.CustomerID = sub.CustomerID
		switch event.Type {
		case stripe.EventTypeCustomerSubscriptionCreated:
			n.Type = NotificationSubscriptionCreated
		case stripe.EventTypeCustomerSubscriptionDeleted:
			n.Type = NotificationSubscriptionDeleted
		default:
			n.Type = NotificationSubscriptionUpdated
		}

	case stripe.EventTypeCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return Notification{}, errors.Join(ErrMalformedPayload, err)
		}
		n.Type = NotificationCheckoutCompleted
		if cs.Customer != nil {
			n.CustomerID = cs.Customer.ID
		}
		if cs.Subscription != nil {
			n.SubscriptionID = cs.Subscription.ID
		}

	default:
		var obj struct {
			Customer json.RawMessage `json:"customer"`
		}
		if err := json.Unmarshal(event.Data.Raw, &obj); err == nil {
			n.CustomerID = expandableID(obj.Customer)
		}
	}

	return n, nil
}

// expandableID reads an id from a field that is either a string or an expanded object.
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
