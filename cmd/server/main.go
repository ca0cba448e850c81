package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/imgcompare/handler"
	"github.com/dmitrymomot/imgcompare/modules/billing"
	"github.com/dmitrymomot/imgcompare/modules/compare"
	"github.com/dmitrymomot/imgcompare/pkg/authn"
	"github.com/dmitrymomot/imgcompare/pkg/config"
	"github.com/dmitrymomot/imgcompare/pkg/environment"
	"github.com/dmitrymomot/imgcompare/pkg/httpserver"
	"github.com/dmitrymomot/imgcompare/pkg/logger"
	"github.com/dmitrymomot/imgcompare/pkg/requestid"
	"github.com/dmitrymomot/imgcompare/pkg/telemetry"
	"github.com/dmitrymomot/imgcompare/svc/customer"
	"github.com/dmitrymomot/imgcompare/svc/entitlement"
	"github.com/dmitrymomot/imgcompare/svc/mirror"
	"github.com/dmitrymomot/imgcompare/svc/plan"
	"github.com/dmitrymomot/imgcompare/svc/quota"
	"github.com/dmitrymomot/imgcompare/svc/user"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// authErrors classifies failures of the bearer-token middleware.
var authErrors = handler.ErrorTable{
	{Err: authn.ErrUnauthorized, HTTP: handler.ErrUnauthorized},
	{Err: authn.ErrMissingToken, HTTP: handler.ErrUnauthorized},
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("application error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load[appConfig]()
	if err != nil {
		return err
	}
	logCfg, err := config.Load[logger.Config]()
	if err != nil {
		return err
	}
	env := environment.Parse(cfg.Env)

	log, closeLog := logger.New(
		logger.WithEnvironment(env, cfg.Name),
		logger.WithConfig(logCfg),
		logger.WithAttr(slog.String("version", version)),
		logger.WithContextExtractors(
			requestid.LogExtractor(),
			authn.LogExtractor(),
			telemetry.LogExtractor(),
		),
	)
	defer func() { _ = closeLog() }()
	slog.SetDefault(log)

	log.InfoContext(ctx, "starting application",
		slog.String("environment", env.String()),
		slog.String("quota_backend", cfg.QuotaBackend),
		slog.String("data_backend", cfg.DataBackend),
		slog.String("billing_provider", cfg.BillingProvider),
	)

	telCfg, err := config.Load[telemetry.Config]()
	if err != nil {
		return err
	}
	tel, err := telemetry.New(ctx, telCfg, env.String(), version)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	stores, err := connect(ctx, cfg, env, log)
	if err != nil {
		return err
	}

	planCfg, err := config.Load[plan.Config]()
	if err != nil {
		return err
	}
	catalog, err := plan.NewCatalogFromConfig(planCfg)
	if err != nil {
		return err
	}

	lc, err := newLedger(cfg, env)
	if err != nil {
		return err
	}

	resolver := customer.NewResolver(lc, stores.users, customer.WithLogger(log))
	ent := entitlement.NewService(resolver, lc, catalog,
		entitlement.WithLogger(log),
		entitlement.WithMirrorStore(stores.users),
	)
	gate := quota.NewGate(ent, catalog, stores.quota, quota.WithGateLogger(log))
	mirrorSync := mirror.NewSync(stores.users, stores.notifications, catalog, mirror.WithLogger(log))

	comparer, maxFileBytes, err := newComparer(log)
	if err != nil {
		return err
	}

	authCfg, err := config.Load[authn.Config]()
	if err != nil {
		return err
	}
	verifier, err := authn.NewVerifier(ctx, authCfg)
	if err != nil {
		return err
	}
	authenticate := authn.Middleware(verifier,
		authn.WithErrorResponder(handler.Responder(handler.NewErrorHandler(log, authErrors))),
		authn.WithMiddlewareLogger(log),
		authn.WithOnAuthenticated(func(ctx context.Context, c authn.Claims) error {
			_, err := stores.users.Ensure(ctx, user.User{ID: c.Subject, Email: c.Email, Name: c.Name})
			return err
		}),
	)

	limiter, err := newLimiter(stores)
	if err != nil {
		return err
	}
	compareOpts := []compare.Option{
		compare.WithLogger(log),
		compare.WithMaxFileBytes(maxFileBytes),
	}
	if limiter != nil {
		compareOpts = append(compareOpts, compare.WithLimiter(limiter))
	}

	billingCfg, err := config.Load[billing.Config]()
	if err != nil {
		return err
	}
	billingModule := billing.New(billing.Deps{
		Status:   ent,
		Usage:    stores.quota,
		Identity: resolver,
		Portal:   lc,
		Decoder:  lc,
		Mirror:   mirrorSync,
		Catalog:  catalog,
	}, billingCfg, billing.WithLogger(log), billing.WithEnvironment(env))

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(environment.Middleware(env))

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, 5*time.Second, stores.checks))
	r.Route("/api", func(r chi.Router) {
		r.Mount("/compare", compare.New(gate, comparer, compareOpts...).Router(authenticate))
		r.Mount("/billing", billingModule.Router(authenticate))
	})

	srvCfg, err := config.Load[httpserver.Config]()
	if err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(srvCfg,
		httpserver.WithLogger(log),
		httpserver.WithStopHook(func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				log.ErrorContext(shutdownCtx, "failed to flush traces", logger.Error(err))
			}
			stores.close(shutdownCtx)
		}),
	)

	if err := srv.Run(ctx, r); err != nil {
		return err
	}
	log.InfoContext(ctx, "application stopped")
	return nil
}
