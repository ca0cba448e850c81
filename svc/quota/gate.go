package quota

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/imgcompare/pkg/logger"
	"github.com/dmitrymomot/imgcompare/svc/entitlement"
	"github.com/dmitrymomot/imgcompare/svc/plan"
)

// PlanSource reports the plan a user is entitled to right now.
type PlanSource interface {
	CurrentPlan(ctx context.Context, userID string) (plan.Tier, error)
}

// Grant is a successful authorization. One unit of quota has been consumed.
type Grant struct {
	Plan      plan.Tier `json:"plan"`
	Max       int       `json:"max"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
}

// Gate is the single authorization point for protected actions.
type Gate struct {
	plans   PlanSource
	catalog *plan.Catalog
	store   Store
	logger  *slog.Logger
	tracer  trace.Tracer
}

// GateOption configures a Gate.
type GateOption func(*Gate)

func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate creates a gate.
func NewGate(plans PlanSource, catalog *plan.Catalog, store Store, opts ...GateOption) *Gate {
	g := &Gate{
		plans:   plans,
		catalog: catalog,
		store:   store,
		logger:  slog.Default(),
		tracer:  otel.Tracer("imgcompare/quota"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize decides whether userID may perform one protected action now and,
// if so, consumes one unit of today's quota. It fails with
// entitlement.ErrNoPlan or ErrLimitExceeded; ledger and store failures are
// returned wrapped. Call it once per action, right before doing the work.
func (g *Gate) Authorize(ctx context.Context, userID string) (Grant, error) {
	ctx, span := g.tracer.Start(ctx, "quota.Authorize")
	defer span.End()

	grant, err := g.authorize(ctx, userID)
	if err != nil {
		if !errors.Is(err, entitlement.ErrNoPlan) && !errors.Is(err, ErrLimitExceeded) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("decision", decision(err)))
		return grant, err
	}
	span.SetAttributes(
		attribute.String("decision", "allow"),
		attribute.String("plan", grant.Plan.String()),
		attribute.Int("used", grant.Used),
	)
	return grant, nil
}

func (g *Gate) authorize(ctx context.Context, userID string) (Grant, error) {
	tier, err := g.plans.CurrentPlan(ctx, userID)
	if err != nil {
		return Grant{}, err
	}
	if tier == plan.TierNone {
		return Grant{}, entitlement.ErrNoPlan
	}

	limit := g.catalog.DailyLimit(tier)
	if limit <= 0 {
		g.logger.WarnContext(ctx, "plan has no daily allowance",
			logger.Component("quota"),
			logger.UserID(userID),
			logger.Plan(tier.String()),
		)
		return Grant{Plan: tier}, entitlement.ErrNoPlan
	}

	// A caller that has gone away must not spend quota.
	if err := ctx.Err(); err != nil {
		return Grant{Plan: tier, Max: limit}, err
	}

	usage, err := g.store.CheckAndConsume(ctx, userID, tier, limit)
	grant := Grant{Plan: tier, Max: limit, Used: usage.Used, Remaining: usage.Remaining}
	if err != nil {
		if errors.Is(err, ErrLimitExceeded) {
			g.logger.InfoContext(ctx, "daily limit reached",
				logger.Component("quota"),
				logger.UserID(userID),
				logger.Plan(tier.String()),
				slog.Int("max", limit),
			)
		}
		return grant, err
	}
	return grant, nil
}

func decision(err error) string {
	switch {
	case errors.Is(err, entitlement.ErrNoPlan):
		return "no_plan"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	default:
		return "error"
	}
}
