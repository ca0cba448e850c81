package billing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/imgcompare/binder"
	"github.com/dmitrymomot/imgcompare/handler"
	"github.com/dmitrymomot/imgcompare/pkg/environment"
	"github.com/dmitrymomot/imgcompare/svc/entitlement"
	"github.com/dmitrymomot/imgcompare/svc/ledger"
	"github.com/dmitrymomot/imgcompare/svc/plan"
	"github.com/dmitrymomot/imgcompare/svc/quota"
)

// StatusReader returns the display view of a user's subscription.
type StatusReader interface {
	Status(ctx context.Context, userID string) (entitlement.Status, error)
}

// UsageReader reports today's consumption.
type UsageReader interface {
	Usage(ctx context.Context, userID string) (quota.Usage, error)
}

// IdentityResolver maps a user to a ledger customer, creating one if needed.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (string, error)
}

// PortalCreator opens billing portal sessions.
type PortalCreator interface {
	CreatePortalSession(ctx context.Context, req ledger.PortalRequest) (string, error)
}

// NotificationHandler applies a decoded lifecycle notification.
type NotificationHandler interface {
	Handle(ctx context.Context, n ledger.Notification) error
}

// Deps groups the services the module reads from and writes to.
type Deps struct {
	Status   StatusReader
	Usage    UsageReader
	Identity IdentityResolver
	Portal   PortalCreator
	Decoder  ledger.NotificationDecoder
	Mirror   NotificationHandler
	Catalog  *plan.Catalog
}

// Module serves the billing endpoints.
type Module struct {
	deps   Deps
	cfg    Config
	env    environment.Environment
	logger *slog.Logger
	errors handler.ErrorHandler
}

type Option func(*Module)

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithEnvironment sets the deployment environment. Unsigned notifications
// are never accepted in production.
func WithEnvironment(env environment.Environment) Option {
	return func(m *Module) { m.env = env }
}

// New creates the billing module.
func New(deps Deps, cfg Config, opts ...Option) *Module {
	if cfg.MaxWebhookBytes <= 0 {
		cfg.MaxWebhookBytes = 1 << 20
	}
	m := &Module{
		deps:   deps,
		cfg:    cfg,
		env:    environment.Production,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.errors = handler.NewErrorHandler(m.logger, Errors)
	return m
}

// Router mounts POST /status and POST /portal behind authenticate, and
// POST /webhook without it.
func (m *Module) Router(authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/status", handler.Wrap(m.status,
			handler.WithErrorHandler[struct{}](m.errors),
		))
		r.Post("/portal", handler.Wrap(m.portal,
			handler.WithBinders[portalRequest](binder.JSON(true)),
			handler.WithDecorators(handler.Validated[portalRequest]()),
			handler.WithErrorHandler[portalRequest](m.errors),
		))
	})
	r.Post("/webhook", handler.Wrap(m.webhook,
		handler.WithBinders[webhookRequest](rawBody(m.cfg.MaxWebhookBytes)),
		handler.WithErrorHandler[webhookRequest](m.errors),
	))
	return r
}
