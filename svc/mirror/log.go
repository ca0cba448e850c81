package mirror

import (
	"context"
	"time"
)

// Entry is one record of the notification log.
type Entry struct {
	ID          string    `bson:"_id" json:"id"`
	Type        string    `bson:"type" json:"type"`
	CustomerID  string    `bson:"customer_id,omitempty" json:"customer_id,omitempty"`
	UserID      string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	ReceivedAt  time.Time `bson:"received_at" json:"received_at"`
	ClaimedAt   time.Time `bson:"claimed_at" json:"claimed_at"`
	ProcessedAt time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	Error       string    `bson:"error,omitempty" json:"error,omitempty"`
	Orphan      bool      `bson:"orphan" json:"orphan"`
}

// Orphan is a notification no user could be matched to.
type Orphan struct {
	// Key is the subscription id, or the notification id when the
	// notification carries no subscription.
	Key            string    `bson:"_id" json:"key"`
	NotificationID string    `bson:"notification_id" json:"notification_id"`
	Type           string    `bson:"type" json:"type"`
	CustomerID     string    `bson:"customer_id,omitempty" json:"customer_id,omitempty"`
	SubscriptionID string    `bson:"subscription_id,omitempty" json:"subscription_id,omitempty"`
	Payload        string    `bson:"payload,omitempty" json:"payload,omitempty"`
	ReceivedAt     time.Time `bson:"received_at" json:"received_at"`
}

// ClaimTTL is how long an unfinished claim blocks redeliveries. A claim
// older than this is assumed abandoned by a crashed process.
const ClaimTTL = 5 * time.Minute

// Log records processed notifications and orphans.
type Log interface {
	// Begin claims the notification for processing, using e.ReceivedAt as
	// the claim time. Exactly one concurrent caller gets true. It reports
	// false when the entry was processed successfully or is claimed by
	// another caller; failed and abandoned entries can be claimed again.
	Begin(ctx context.Context, e Entry) (bool, error)
	MarkProcessed(ctx context.Context, id, userID string, orphan bool, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string, at time.Time) error
	SaveOrphan(ctx context.Context, o Orphan) error
}
