// Package mirror keeps each user's locally stored subscription snapshot in
// step with ledger lifecycle notifications.
//
// The mirror is a convenience copy for display and offline reconciliation.
// Access decisions never read it; see package entitlement.
//
// # Notification log
//
// Every notification is recorded in a log keyed by its id. Log.Begin claims
// an id before the notification is applied, and exactly one concurrent
// caller wins the claim. A redelivery is skipped when the earlier attempt
// succeeded or is still running. A failed attempt, or a claim older than
// ClaimTTL, can be claimed again.
//
// Two logs are provided:
//
//   - MemoryLog, for development and tests
//   - MongoLog, which claims with a single conditional upsert
//
// # Applying notifications
//
// Sync.Handle looks up the user linked to the notification's customer and
// updates the mirror last-write-wins on the fields the notification
// carries. Deleting a subscription other than the mirrored one leaves the
// mirror alone. Notifications for customers no user is linked to are kept
// as Orphan records for reconciliation.
//
//	sync := mirror.NewSync(users, mirror.NewMongoLog(db), catalog, mirror.WithLogger(log))
//	if err := sync.Handle(ctx, notification); err != nil {
//		// recorded in the log as failed
//	}
//
// Quota counters are never touched here.
package mirror
