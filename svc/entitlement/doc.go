// Package entitlement derives a user's current plan from the live ledger.
//
// The ledger is the single source of truth for entitlement. Every call
// resolves the user's ledger customer, lists its subscriptions and picks
// the newest one that is usable at the current time. The local mirror kept
// by package mirror is never read here.
//
// # Enforcement
//
// CurrentPlan admits only trialing and active subscriptions. It fails
// closed with ErrNoPlan when there is no usable subscription or when the
// newest one is sold at a price the plan catalog does not know:
//
//	tier, err := svc.CurrentPlan(ctx, userID)
//	if errors.Is(err, entitlement.ErrNoPlan) {
//		// deny
//	}
//
// Ledger failures are returned joined with ledger.ErrUnavailable and must
// never be read as "no plan".
//
// # Display
//
// Status also admits past_due and unpaid subscriptions so a user whose
// payment failed still sees their plan. Besides the usable subscription it
// returns Latest, the newest subscription of any status, so a canceled
// customer can be shown what they had.
//
// When WithMirrorStore is set, Status writes a fresh snapshot to the user's
// mirror. A failed write is logged and does not fail the call.
//
// # Cancellation
//
// A subscription scheduled to cancel stays usable until the cancellation
// takes effect and is rejected from that moment on, whatever its status.
package entitlement
