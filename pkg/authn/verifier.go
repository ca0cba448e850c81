package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Config selects how bearer tokens are verified. A JWKS URL (or an issuer,
// from which the well-known JWKS URL is derived) enables RS/ES verification;
// otherwise HMACSecret enables HS256, meant for development and tests.
type Config struct {
	Issuer     string        `env:"AUTH_ISSUER"`
	Audience   string        `env:"AUTH_AUDIENCE"`
	JWKSURL    string        `env:"AUTH_JWKS_URL"`
	HMACSecret string        `env:"AUTH_HMAC_SECRET"`
	Leeway     time.Duration `env:"AUTH_LEEWAY" envDefault:"30s"`
}

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Verifier validates JWT access tokens.
type Verifier struct {
	parser  *jwt.Parser
	keyfunc jwt.Keyfunc
}

// NewVerifier builds a Verifier from cfg. ctx bounds the background JWKS refresh.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if iss := strings.TrimSpace(cfg.Issuer); iss != "" {
		opts = append(opts, jwt.WithIssuer(iss))
	}
	if aud := strings.TrimSpace(cfg.Audience); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}

	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" && cfg.Issuer != "" && cfg.HMACSecret == "" {
		jwksURL = strings.TrimSuffix(strings.TrimSpace(cfg.Issuer), "/") + "/.well-known/jwks.json"
	}

	switch {
	case jwksURL != "":
		k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("init jwks: %w", err))
		}
		opts = append(opts, jwt.WithValidMethods([]string{
			jwt.SigningMethodRS256.Name, jwt.SigningMethodRS384.Name, jwt.SigningMethodRS512.Name,
			jwt.SigningMethodES256.Name, jwt.SigningMethodES384.Name,
		}))
		return &Verifier{parser: jwt.NewParser(opts...), keyfunc: k.Keyfunc}, nil

	case cfg.HMACSecret != "":
		secret := []byte(cfg.HMACSecret)
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
		return &Verifier{
			parser:  jwt.NewParser(opts...),
			keyfunc: func(*jwt.Token) (any, error) { return secret, nil },
		}, nil
	}
	return nil, fmt.Errorf("%w: one of AUTH_JWKS_URL, AUTH_ISSUER or AUTH_HMAC_SECRET is required", ErrInvalidConfig)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verify parses and validates token. Every failure wraps ErrUnauthorized.
func (v *Verifier) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, errors.Join(ErrUnauthorized, ErrMissingToken)
	}
	var tc tokenClaims
	if _, err := v.parser.ParseWithClaims(token, &tc, v.keyfunc); err != nil {
		return Claims{}, errors.Join(ErrUnauthorized, ErrInvalidToken, err)
	}
	if tc.Subject == "" {
		return Claims{}, errors.Join(ErrUnauthorized, fmt.Errorf("%w: missing sub", ErrInvalidToken))
	}
	c := Claims{
		Subject: tc.Subject,
		Email:   strings.TrimSpace(tc.Email),
		Name:    tc.Name,
		Issuer:  tc.Issuer,
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
