package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/imgcompare/pkg/logger"
	"github.com/dmitrymomot/imgcompare/svc/ledger"
	"github.com/dmitrymomot/imgcompare/svc/plan"
	"github.com/dmitrymomot/imgcompare/svc/user"
)

// IdentityResolver maps an application user to a ledger customer id.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (string, error)
}

// Status is the display view of a user's subscription.
type Status struct {
	Active       bool
	Tier         plan.Tier
	CustomerID   string
	Subscription *ledger.Subscription
	// Latest is the newest subscription of any status, usable or not.
	// It is nil only when the customer has never subscribed.
	Latest *ledger.Subscription
}

// Service answers "which plan does this user have right now" against the
// live ledger.
type Service struct {
	identity IdentityResolver
	ledger   ledger.Client
	catalog  *plan.Catalog
	users    user.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for cancellation checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMirrorStore makes Status refresh the user's local mirror.
func WithMirrorStore(users user.Store) Option {
	return func(s *Service) { s.users = users }
}

// NewService creates an entitlement service.
func NewService(identity IdentityResolver, lc ledger.Client, catalog *plan.Catalog, opts ...Option) *Service {
	s := &Service{
		identity: identity,
		ledger:   lc,
		catalog:  catalog,
		logger:   slog.Default(),
		tracer:   otel.Tracer("imgcompare/entitlement"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentPlan returns the tier of the user's newest strictly usable
// subscription. It returns ErrNoPlan when there is none or when the
// subscription's price does not map to a tier.
func (s *Service) CurrentPlan(ctx context.Context, userID string) (plan.Tier, error) {
	ctx, span := s.tracer.Start(ctx, "entitlement.CurrentPlan")
	defer span.End()

	sub, _, _, err := s.newest(ctx, userID, plan.Strict)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return plan.TierNone, err
	}
	if sub == nil {
		return plan.TierNone, ErrNoPlan
	}

	tier := s.catalog.ResolveSubscription(*sub)
	span.SetAttributes(attribute.String("plan", tier.String()))
	if tier == plan.TierNone {
		price, _ := sub.PrimaryPrice()
		s.logger.WarnContext(ctx, "subscription price does not map to a plan",
			logger.Component("entitlement"),
			logger.UserID(userID),
			logger.SubscriptionID(sub.ID),
			slog.String("price_id", price.ID),
		)
		return plan.TierNone, ErrNoPlan
	}
	return tier, nil
}

// Status returns the newest leniently usable subscription for display.
// When a mirror store is configured the result is written to the user's
// mirror; a failed write is logged and does not fail the call.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	ctx, span := s.tracer.Start(ctx, "entitlement.Status")
	defer span.End()

	sub, latest, customerID, err := s.newest(ctx, userID, plan.Lenient)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Status{}, err
	}

	st := Status{CustomerID: customerID, Subscription: sub, Latest: latest}
	if sub != nil {
		st.Active = true
		st.Tier = s.catalog.ResolveSubscription(*sub)
	}

	if s.users != nil {
		if err := s.users.SetMirror(ctx, userID, MirrorFromStatus(st, s.now())); err != nil {
			s.logger.WarnContext(ctx, "failed to refresh subscription mirror",
				logger.Component("entitlement"),
				logger.UserID(userID),
				logger.Error(err),
			)
		}
	}
	return st, nil
}

// newest returns the newest subscription usable under mode together with
// the newest subscription of any status.
func (s *Service) newest(ctx context.Context, userID string, mode plan.Mode) (usable, latest *ledger.Subscription, customerID string, err error) {
	customerID, err = s.identity.Resolve(ctx, userID)
	if err != nil {
		return nil, nil, "", err
	}

	subs, err := s.ledger.ListSubscriptions(ctx, customerID)
	if err != nil {
		if !errors.Is(err, ledger.ErrUnavailable) {
			err = errors.Join(ledger.ErrUnavailable, err)
		}
		return nil, nil, customerID, err
	}

	if sub, ok := ledger.NewestSubscription(subs); ok {
		latest = &sub
	}
	if sub, ok := ledger.NewestSubscription(plan.FilterUsable(subs, s.now(), mode)); ok {
		usable = &sub
	}
	return usable, latest, customerID, nil
}

// MirrorFromStatus converts a live status into the stored mirror shape.
func MirrorFromStatus(st Status, at time.Time) user.Mirror {
	m := user.Mirror{Active: st.Active, SyncedAt: at.UTC()}
	if st.Tier != plan.TierNone {
		m.Plan = string(st.Tier)
	}
	if st.Subscription == nil && st.Latest != nil {
		m.Status = string(st.Latest.Status)
	}
	if sub := st.Subscription; sub != nil {
		m.Status = string(sub.Status)
		m.SubscriptionID = sub.ID
		m.CurrentPeriodEnd = sub.CurrentPeriodEnd
		m.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		m.CancelAt = sub.CancelAt
		if p, ok := sub.PrimaryPrice(); ok {
			m.PriceID = p.ID
		}
	}
	return m
}
