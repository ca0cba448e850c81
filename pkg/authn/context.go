package authn

import (
	"context"
	"time"
)

// Claims are the verified identity fields of a bearer token.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	Issuer    string
	ExpiresAt time.Time
}

type ctxKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// ClaimsFromContext returns the claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	return c, ok
}

// UserID returns the authenticated subject, or an empty string.
func UserID(ctx context.Context) string {
	c, _ := ClaimsFromContext(ctx)
	return c.Subject
}
