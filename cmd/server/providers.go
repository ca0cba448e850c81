package main

import (
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/imgcompare/pkg/config"
	"github.com/dmitrymomot/imgcompare/pkg/environment"
	comparesvc "github.com/dmitrymomot/imgcompare/svc/compare"
	"github.com/dmitrymomot/imgcompare/svc/ledger"
)

// newLedger selects the billing provider. BILLING_WEBHOOK_SECRETS applies to
// any provider whose own secret list is empty.
func newLedger(cfg appConfig, env environment.Environment) (ledger.Provider, error) {
	switch cfg.BillingProvider {
	case providerStripe:
		sc, err := config.Load[ledger.StripeConfig]()
		if err != nil {
			return nil, err
		}
		if len(sc.WebhookSecrets) == 0 {
			sc.WebhookSecrets = cfg.WebhookSecrets
		}
		c, err := ledger.NewStripeClient(sc)
		if err != nil {
			return nil, err
		}
		return c, nil
	case providerPaddle:
		pc, err := config.Load[ledger.PaddleConfig]()
		if err != nil {
			return nil, err
		}
		if len(pc.WebhookSecrets) == 0 {
			pc.WebhookSecrets = cfg.WebhookSecrets
		}
		c, err := ledger.NewPaddleClient(pc)
		if err != nil {
			return nil, err
		}
		return c, nil
	case providerMemory:
		if env.IsProduction() {
			return nil, ErrMemoryBackendInProduction
		}
		return ledger.NewMemory(ledger.WithMemorySecrets(cfg.WebhookSecrets...)), nil
	}
	return nil, fmt.Errorf("unknown BILLING_PROVIDER %q", cfg.BillingProvider)
}

// newComparer returns the remote inference client, or the local comparer
// when no endpoint is configured.
func newComparer(log *slog.Logger) (comparesvc.Comparer, int64, error) {
	cfg, err := config.Load[comparesvc.Config]()
	if err != nil {
		return nil, 0, err
	}
	if cfg.Endpoint == "" {
		log.Warn("COMPARE_ENDPOINT is not set, using the local comparer")
		return comparesvc.Local{}, cfg.MaxFileBytes, nil
	}
	client, err := comparesvc.NewClient(cfg, comparesvc.WithLogger(log))
	if err != nil {
		return nil, 0, err
	}
	return client, cfg.MaxFileBytes, nil
}
