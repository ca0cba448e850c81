package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/imgcompare/pkg/logger"
)

// ErrorResponder writes the response for a rejected request.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

type middlewareOptions struct {
	onError         ErrorResponder
	onAuthenticated func(context.Context, Claims) error
	logger          *slog.Logger
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareOptions)

// WithErrorResponder overrides the default plain 401 response.
func WithErrorResponder(fn ErrorResponder) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithOnAuthenticated runs fn after a token is verified, before the handler.
// An error from fn rejects the request through the error responder unchanged.
func WithOnAuthenticated(fn func(context.Context, Claims) error) MiddlewareOption {
	return func(o *middlewareOptions) { o.onAuthenticated = fn }
}

func WithMiddlewareLogger(l *slog.Logger) MiddlewareOption {
	return func(o *middlewareOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Middleware requires a valid bearer token and stores its claims in the request context.
func Middleware(v TokenVerifier, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	o := middlewareOptions{
		onError: func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				o.onError(w, r, errors.Join(ErrUnauthorized, ErrMissingToken))
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				o.logger.DebugContext(ctx, "bearer token rejected", logger.Error(err))
				o.onError(w, r, err)
				return
			}

			ctx = WithClaims(ctx, claims)
			if o.onAuthenticated != nil {
				if err := o.onAuthenticated(ctx, claims); err != nil {
					o.onError(w, r, err)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// LogExtractor adds the authenticated user id to request-scoped log records.
func LogExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id := UserID(ctx)
		if id == "" {
			return slog.Attr{}, false
		}
		return logger.UserID(id), true
	}
}
