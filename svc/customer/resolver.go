package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/imgcompare/pkg/logger"
	"github.com/dmitrymomot/imgcompare/svc/ledger"
	"github.com/dmitrymomot/imgcompare/svc/user"
)

// Resolver finds or creates the ledger customer for an application user.
//
// Resolution order: the id cached on the user record, a metadata search on
// the application user id, an email search (falling back to a plain email
// list when search is unavailable), and finally creation. Search failures
// only degrade to the next strategy; a failed create is returned.
// Concurrent first-time resolutions for one user inside the process share
// a single ledger round trip. The shared lookup is detached from the
// cancellation of whichever caller started it and bounded by its own
// timeout; each caller still stops waiting when its own context ends.
type Resolver struct {
	ledger  ledger.Client
	users   user.Store
	logger  *slog.Logger
	tracer  trace.Tracer
	group   singleflight.Group
	timeout time.Duration
}

// DefaultSharedTimeout bounds a shared first-time resolution.
const DefaultSharedTimeout = 30 * time.Second

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for degraded lookups.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSharedTimeout bounds the ledger work shared by concurrent callers.
func WithSharedTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewResolver creates an identity resolver.
func NewResolver(lc ledger.Client, users user.Store, opts ...Option) *Resolver {
	r := &Resolver{
		ledger:  lc,
		users:   users,
		logger:  slog.Default(),
		tracer:  otel.Tracer("imgcompare/customer"),
		timeout: DefaultSharedTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the ledger customer id for userID, creating one if needed.
func (r *Resolver) Resolve(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", user.ErrMissingID
	}

	u, err := r.users.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if u.BillingCustomerID != "" {
		return u.BillingCustomerID, nil
	}

	ctx, span := r.tracer.Start(ctx, "customer.Resolve",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	ch := r.group.DoChan(userID, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.resolve(sctx, u)
	})

	select {
	case <-ctx.Done():
		err := ctx.Err()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	case res := <-ch:
		span.SetAttributes(attribute.Bool("shared", res.Shared))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *Resolver) resolve(ctx context.Context, u user.User) (string, error) {
	// Another caller may have finished while this one waited for the group.
	if fresh, err := r.users.Get(ctx, u.ID); err == nil && fresh.BillingCustomerID != "" {
		return fresh.BillingCustomerID, nil
	}

	id, err := r.lookup(ctx, u)
	if err != nil {
		return "", err
	}

	if err := r.users.SetBillingCustomerID(ctx, u.ID, id); err != nil {
		return "", errors.Join(ErrPersist, err)
	}
	r.logger.InfoContext(ctx, "billing identity resolved",
		logger.Component("customer"),
		logger.UserID(u.ID),
		logger.CustomerID(id),
	)
	return id, nil
}

func (r *Resolver) lookup(ctx context.Context, u user.User) (string, error) {
	found, err := r.ledger.SearchCustomersByMetadata(ctx, ledger.MetadataUserKey, u.ID)
	if err != nil {
		r.degraded(ctx, u.ID, "metadata search", err)
	} else if c, ok := ledger.NewestCustomer(found); ok {
		return c.ID, nil
	}

	if u.Email != "" {
		if id, ok := r.byEmail(ctx, u); ok {
			return id, nil
		}
	}

	c, err := r.ledger.CreateCustomer(ctx, ledger.CustomerParams{
		Email:          u.Email,
		Name:           u.Name,
		Metadata:       map[string]string{ledger.MetadataUserKey: u.ID},
		IdempotencyKey: IdempotencyKey(u.ID),
	})
	if err != nil {
		return "", errors.Join(ErrCreate, err)
	}
	return c.ID, nil
}

func (r *Resolver) byEmail(ctx context.Context, u user.User) (string, bool) {
	found, err := r.ledger.SearchCustomersByEmail(ctx, u.Email)
	if err == nil {
		if c, ok := ledger.NewestCustomer(found); ok {
			return c.ID, true
		}
		return "", false
	}
	r.degraded(ctx, u.ID, "email search", err)

	found, err = r.ledger.ListCustomersByEmail(ctx, u.Email)
	if err != nil {
		r.degraded(ctx, u.ID, "email list", err)
		return "", false
	}
	if c, ok := ledger.NewestCustomer(found); ok {
		return c.ID, true
	}
	return "", false
}

func (r *Resolver) degraded(ctx context.Context, userID, step string, err error) {
	r.logger.WarnContext(ctx, "billing identity lookup degraded",
		logger.Component("customer"),
		logger.UserID(userID),
		slog.String("step", step),
		logger.Error(err),
	)
}

// IdempotencyKey is sent with customer creation so that retries from any
// process within the ledger's idempotency window reuse the same customer.
func IdempotencyKey(userID string) string {
	return "customer-create-" + userID
}
