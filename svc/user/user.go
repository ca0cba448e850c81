package user

import (
	"context"
	"time"
)

// User is the application user record as seen by the billing core.
// Profile fields come from the identity provider; the billing fields are
// written only by the identity resolver and the mirror sync.
type User struct {
	ID                string    `bson:"_id"`
	Email             string    `bson:"email"`
	Name              string    `bson:"name,omitempty"`
	BillingCustomerID string    `bson:"billing_customer_id,omitempty"`
	Mirror            *Mirror   `bson:"billing_mirror,omitempty"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

// Mirror is the locally cached view of the user's subscription.
// It is informational only; enforcement always asks the ledger.
type Mirror struct {
	Plan              string    `bson:"plan,omitempty" json:"plan,omitempty"`
	Status            string    `bson:"status,omitempty" json:"status,omitempty"`
	Active            bool      `bson:"active" json:"active"`
	SubscriptionID    string    `bson:"subscription_id,omitempty" json:"subscription_id,omitempty"`
	PriceID           string    `bson:"price_id,omitempty" json:"price_id,omitempty"`
	CurrentPeriodEnd  time.Time `bson:"current_period_end,omitempty" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool      `bson:"cancel_at_period_end" json:"cancel_at_period_end"`
	CancelAt          time.Time `bson:"cancel_at,omitempty" json:"cancel_at,omitempty"`
	EventID           string    `bson:"event_id,omitempty" json:"event_id,omitempty"`
	SyncedAt          time.Time `bson:"synced_at" json:"synced_at"`
}

// Store persists user records.
type Store interface {
	Get(ctx context.Context, id string) (User, error)
	FindByBillingCustomerID(ctx context.Context, customerID string) (User, error)
	// Ensure creates the user if missing and refreshes its profile fields.
	// Billing fields are never touched.
	Ensure(ctx context.Context, u User) (User, error)
	SetBillingCustomerID(ctx context.Context, id, customerID string) error
	SetMirror(ctx context.Context, id string, m Mirror) error
}
