package main

// appConfig holds the process-level settings. Every infrastructure package
// loads its own Config.
type appConfig struct {
	Env             string   `env:"APP_ENV" envDefault:"development"`
	Name            string   `env:"APP_NAME" envDefault:"imgcompare"`
	DataBackend     string   `env:"DATA_BACKEND" envDefault:"mongo"`
	QuotaBackend    string   `env:"QUOTA_BACKEND" envDefault:"mongo"`
	BillingProvider string   `env:"BILLING_PROVIDER" envDefault:"stripe"`
	WebhookSecrets  []string `env:"BILLING_WEBHOOK_SECRETS" envSeparator:","`
	SharedRateLimit bool     `env:"RATE_LIMIT_SHARED" envDefault:"false"`
}

const (
	backendMemory   = "memory"
	backendMongo    = "mongo"
	backendPostgres = "postgres"
	backendRedis    = "redis"

	providerStripe = "stripe"
	providerPaddle = "paddle"
	providerMemory = "memory"
)
