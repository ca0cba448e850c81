package plan

import (
	"time"

	"github.com/dmitrymomot/imgcompare/svc/ledger"
)

// Mode selects which statuses count as usable.
type Mode int

const (
	// Strict admits trialing and active subscriptions. Used for enforcement.
	Strict Mode = iota
	// Lenient also admits past_due and unpaid. Used for display only.
	Lenient
)

func (m Mode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// Usable reports whether the subscription grants access at now.
// A scheduled cancellation keeps access until its effective time and
// revokes it afterwards regardless of status.
func Usable(s ledger.Subscription, now time.Time, mode Mode) bool {
	if at := s.CancelEffectiveAt(); !at.IsZero() && !now.Before(at) {
		return false
	}
	switch s.Status {
	case ledger.StatusTrialing, ledger.StatusActive:
		return true
	case ledger.StatusPastDue, ledger.StatusUnpaid:
		return mode == Lenient
	}
	return false
}

// FilterUsable returns the subscriptions usable at now under mode.
func FilterUsable(subs []ledger.Subscription, now time.Time, mode Mode) []ledger.Subscription {
	out := make([]ledger.Subscription, 0, len(subs))
	for _, s := range subs {
		if Usable(s, now, mode) {
			out = append(out, s)
		}
	}
	return out
}
