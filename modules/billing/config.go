package billing

// Config holds the billing endpoint settings.
type Config struct {
	PortalReturnURL       string `env:"BILLING_PORTAL_RETURN_URL" envDefault:"http://localhost:8080/"`
	AllowUnsignedWebhooks bool   `env:"BILLING_ALLOW_UNSIGNED_WEBHOOKS" envDefault:"false"`
	MaxWebhookBytes       int64  `env:"BILLING_MAX_WEBHOOK_BYTES" envDefault:"1048576"`
}
