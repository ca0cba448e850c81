package mirror

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/imgcompare/pkg/logger"
	"github.com/dmitrymomot/imgcompare/svc/ledger"
	"github.com/dmitrymomot/imgcompare/svc/plan"
	"github.com/dmitrymomot/imgcompare/svc/user"
)

// Sync applies ledger lifecycle notifications to the users' local mirrors.
type Sync struct {
	users   user.Store
	log     Log
	catalog *plan.Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Sync.
type Option func(*Sync)

func WithLogger(l *slog.Logger) Option {
	return func(s *Sync) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sync) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSync creates a mirror sync.
func NewSync(users user.Store, log Log, catalog *plan.Catalog, opts ...Option) *Sync {
	s := &Sync{
		users:   users,
		log:     log,
		catalog: catalog,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle processes one authenticated notification. Redelivered notifications
// that were already processed are skipped. Notifications for customers no
// user is linked to are stored as orphans.
func (s *Sync) Handle(ctx context.Context, n ledger.Notification) error {
	if n.ID == "" {
		return ErrMissingID
	}
	now := s.now().UTC()
	log := s.logger.With(
		logger.Component("mirror"),
		logger.NotificationID(n.ID),
		logger.EventType(n.ProviderType),
		logger.CustomerID(n.CustomerID),
	)

	fresh, err := s.log.Begin(ctx, Entry{
		ID:         n.ID,
		Type:       n.ProviderType,
		CustomerID: n.CustomerID,
		ReceivedAt: now,
	})
	if err != nil {
		return err
	}
	if !fresh {
		log.DebugContext(ctx, "notification already processed")
		return nil
	}

	if n.Type == ledger.NotificationOther || n.CustomerID == "" {
		log.DebugContext(ctx, "notification does not affect the mirror")
		return s.log.MarkProcessed(ctx, n.ID, "", false, now)
	}

	u, err := s.users.FindByBillingCustomerID(ctx, n.CustomerID)
	if errors.Is(err, user.ErrNotFound) {
		return s.orphan(ctx, log, n, now)
	}
	if err != nil {
		return s.fail(ctx, log, n.ID, err, now)
	}

	m := s.apply(u.Mirror, n, now)
	if err := s.users.SetMirror(ctx, u.ID, m); err != nil {
		return s.fail(ctx, log, n.ID, errors.Join(ErrMirrorNotStored, err), now)
	}

	log.InfoContext(ctx, "subscription mirror updated",
		logger.UserID(u.ID),
		logger.SubscriptionID(m.SubscriptionID),
		logger.Plan(m.Plan),
		slog.Bool("active", m.Active),
	)
	return s.log.MarkProcessed(ctx, n.ID, u.ID, false, now)
}

// apply merges the fields carried by n into the current mirror.
func (s *Sync) apply(current *user.Mirror, n ledger.Notification, now time.Time) user.Mirror {
	var m user.Mirror
	if current != nil {
		m = *current
	}
	m.EventID = n.ID
	m.SyncedAt = now

	switch n.Type {
	case ledger.NotificationCheckoutCompleted:
		if n.SubscriptionID != "" {
			m.SubscriptionID = n.SubscriptionID
		}
		if n.Subscription != nil {
			s.fromSubscription(&m, *n.Subscription, now)
		}

	case ledger.NotificationSubscriptionDeleted:
		// Deleting an older subscription must not wipe a newer one.
		if m.SubscriptionID != "" && n.SubscriptionID != "" && m.SubscriptionID != n.SubscriptionID {
			return m
		}
		m.SubscriptionID = n.SubscriptionID
		m.Status = string(ledger.StatusCanceled)
		m.Active = false
		m.Plan = ""
		m.CancelAtPeriodEnd = false
		if n.Subscription != nil {
			m.CurrentPeriodEnd = n.Subscription.CurrentPeriodEnd
			m.CancelAt = n.Subscription.CancelAt
		}

	default:
		if n.Subscription != nil {
			s.fromSubscription(&m, *n.Subscription, now)
		} else if n.SubscriptionID != "" {
			m.SubscriptionID = n.SubscriptionID
		}
	}
	return m
}

func (s *Sync) fromSubscription(m *user.Mirror, sub ledger.Subscription, now time.Time) {
	m.SubscriptionID = sub.ID
	m.Status = string(sub.Status)
	m.CurrentPeriodEnd = sub.CurrentPeriodEnd
	m.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	m.CancelAt = sub.CancelAt
	m.Active = plan.Usable(sub, now, plan.Lenient)
	m.Plan = ""
	m.PriceID = ""
	if p, ok := sub.PrimaryPrice(); ok {
		m.PriceID = p.ID
	}
	if t := s.catalog.ResolveSubscription(sub); t != plan.TierNone {
		m.Plan = string(t)
	}
}

func (s *Sync) orphan(ctx context.Context, log *slog.Logger, n ledger.Notification, now time.Time) error {
	key := n.SubscriptionID
	if key == "" {
		key = n.ID
	}
	err := s.log.SaveOrphan(ctx, Orphan{
		Key:            key,
		NotificationID: n.ID,
		Type:           n.ProviderType,
		CustomerID:     n.CustomerID,
		SubscriptionID: n.SubscriptionID,
		Payload:        string(n.Payload),
		ReceivedAt:     now,
	})
	if err != nil {
		return s.fail(ctx, log, n.ID, err, now)
	}
	log.WarnContext(ctx, "notification for unknown customer stored as orphan",
		logger.SubscriptionID(n.SubscriptionID),
	)
	return s.log.MarkProcessed(ctx, n.ID, "", true, now)
}

func (s *Sync) fail(ctx context.Context, log *slog.Logger, id string, cause error, now time.Time) error {
	log.ErrorContext(ctx, "notification processing failed", logger.Error(cause))
	if err := s.log.MarkFailed(ctx, id, cause.Error(), now); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
