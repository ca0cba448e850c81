package ledger

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a subscription as reported by the ledger.
type Status string

const (
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusUnpaid            Status = "unpaid"
	StatusCanceled          Status = "canceled"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusPaused            Status = "paused"
)

// ParseStatus normalizes a provider status string.
// Unknown values are kept as-is so they never match a usable status.
func ParseStatus(s string) Status {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "cancelled" {
		return StatusCanceled
	}
	return Status(s)
}

// Customer is a billing identity record held by the ledger.
type Customer struct {
	ID        string
	Email     string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Price describes what a subscription item is billed at.
type Price struct {
	ID         string
	Nickname   string
	LookupKey  string
	UnitAmount int64
	Currency   string
	Interval   string
}

// Item is a single line of a subscription.
type Item struct {
	ID    string
	Price Price
}

// Subscription is the normalized view of a ledger subscription.
// Adapters convert provider payloads into this shape; nothing outside
// this package sees SDK types.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             Status
	CancelAtPeriodEnd  bool
	CancelAt           time.Time
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CreatedAt          time.Time
	Items              []Item
}

// PrimaryPrice returns the price of the first line item.
func (s Subscription) PrimaryPrice() (Price, bool) {
	if len(s.Items) == 0 {
		return Price{}, false
	}
	return s.Items[0].Price, true
}

// CancelEffectiveAt returns the moment a scheduled cancellation takes effect.
// The zero time means no cancellation is scheduled.
func (s Subscription) CancelEffectiveAt() time.Time {
	if !s.CancelAt.IsZero() {
		return s.CancelAt
	}
	if s.CancelAtPeriodEnd {
		return s.CurrentPeriodEnd
	}
	return time.Time{}
}

// CustomerParams holds the data used to create a customer.
type CustomerParams struct {
	Email          string
	Name           string
	Metadata       map[string]string
	IdempotencyKey string
}

// PortalIntent selects the self-service flow a portal session opens with.
type PortalIntent string

const (
	PortalIntentNone   PortalIntent = "none"
	PortalIntentUpdate PortalIntent = "update"
	PortalIntentCancel PortalIntent = "cancel"
	PortalIntentResume PortalIntent = "resume"
)

// PortalRequest describes a billing portal session to create.
type PortalRequest struct {
	CustomerID     string
	SubscriptionID string
	Intent         PortalIntent
	ReturnURL      string
}

// NotificationType is the normalized kind of a lifecycle notification.
type NotificationType string

const (
	NotificationSubscriptionCreated NotificationType = "subscription.created"
	NotificationSubscriptionUpdated NotificationType = "subscription.updated"
	NotificationSubscriptionDeleted NotificationType = "subscription.deleted"
	NotificationCheckoutCompleted   NotificationType = "checkout.completed"
	NotificationOther               NotificationType = "other"
)

// Notification is a decoded lifecycle notification pushed by the ledger.
type Notification struct {
	ID             string
	Type           NotificationType
	ProviderType   string
	CreatedAt      time.Time
	CustomerID     string
	SubscriptionID string
	// Subscription is set when the notification carries a subscription payload.
	Subscription *Subscription
	Payload      []byte
}

// NewestCustomer picks the most recently created customer.
func NewestCustomer(customers []Customer) (Customer, bool) {
	if len(customers) == 0 {
		return Customer{}, false
	}
	newest := customers[0]
	for _, c := range customers[1:] {
		if c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	return newest, true
}

// NewestSubscription picks the most recently created subscription.
func NewestSubscription(subs []Subscription) (Subscription, bool) {
	if len(subs) == 0 {
		return Subscription{}, false
	}
	newest := subs[0]
	for _, s := range subs[1:] {
		if s.CreatedAt.After(newest.CreatedAt) {
			newest = s
		}
	}
	return newest, true
}
