package compare

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/imgcompare/binder"
	"github.com/dmitrymomot/imgcompare/handler"
	"github.com/dmitrymomot/imgcompare/pkg/authn"
	"github.com/dmitrymomot/imgcompare/pkg/logger"
	"github.com/dmitrymomot/imgcompare/pkg/ratelimiter"
	comparesvc "github.com/dmitrymomot/imgcompare/svc/compare"
	"github.com/dmitrymomot/imgcompare/svc/quota"
)

// Authorizer consumes one unit of the caller's daily allowance.
type Authorizer interface {
	Authorize(ctx context.Context, userID string) (quota.Grant, error)
}

// Module serves the protected comparison endpoint.
type Module struct {
	gate         Authorizer
	comparer     comparesvc.Comparer
	limiter      ratelimiter.Limiter
	maxFileBytes int64
	logger       *slog.Logger
	errors       handler.ErrorHandler
}

type Option func(*Module)

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithLimiter throttles bursts per user before any quota is touched.
func WithLimiter(l ratelimiter.Limiter) Option {
	return func(m *Module) { m.limiter = l }
}

// WithMaxFileBytes bounds each uploaded image.
func WithMaxFileBytes(n int64) Option {
	return func(m *Module) {
		if n > 0 {
			m.maxFileBytes = n
		}
	}
}

// New creates the comparison module.
func New(gate Authorizer, comparer comparesvc.Comparer, opts ...Option) *Module {
	m := &Module{
		gate:         gate,
		comparer:     comparer,
		maxFileBytes: 10 << 20,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.errors = handler.NewErrorHandler(m.logger, Errors)
	return m
}

// Router mounts POST / behind authenticate.
func (m *Module) Router(authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authenticate)
	if m.limiter != nil {
		r.Use(ratelimiter.Middleware(m.limiter,
			func(r *http.Request) string { return authn.UserID(r.Context()) },
			func(w http.ResponseWriter, r *http.Request, _ error) {
				m.errors(handler.NewContext(w, r), handler.ErrRateLimited)
			},
			m.logger,
		))
	}
	r.Use(maxBody(2*m.maxFileBytes + 1<<20))
	r.Post("/", handler.Wrap(m.compare,
		handler.WithBinders[compareRequest](binder.Multipart(m.maxFileBytes)),
		handler.WithDecorators(handler.Validated[compareRequest]()),
		handler.WithErrorHandler[compareRequest](m.errors),
	))
	return r
}

type compareRequest struct {
	Images []binder.FileUpload `file:"images" validate:"len=2"`
	Prompt string              `form:"prompt" validate:"max=2000"`
}

// usageMeta is returned alongside every successful comparison.
type usageMeta struct {
	Plan      string `json:"plan"`
	Used      int    `json:"used"`
	Max       int    `json:"max"`
	Remaining int    `json:"remaining"`
}

func (m *Module) compare(ctx handler.Context, req compareRequest) handler.Response {
	userID := authn.UserID(ctx)
	if userID == "" {
		return handler.Error(authn.ErrUnauthorized)
	}

	in := comparesvc.Request{Prompt: req.Prompt}
	for _, f := range req.Images {
		in.Images = append(in.Images, comparesvc.Image{
			Name:        f.Filename,
			ContentType: f.ContentType(),
			Data:        f.Content,
		})
	}
	// Input is checked before any allowance is consumed.
	if err := comparesvc.Validate(in, m.maxFileBytes); err != nil {
		return handler.Error(err)
	}

	grant, err := m.gate.Authorize(ctx, userID)
	if err != nil {
		return handler.Error(err)
	}

	started := time.Now()
	res, err := m.comparer.Compare(ctx, in)
	if err != nil {
		// The consumed unit is not returned: the allowance counts attempts
		// that reached the inference service.
		m.logger.WarnContext(ctx, "comparison failed after quota was consumed",
			logger.Component("compare"),
			logger.UserID(userID),
			logger.Plan(grant.Plan.String()),
			logger.Error(err),
		)
		return handler.Error(err)
	}
	m.logger.InfoContext(ctx, "comparison completed",
		logger.Component("compare"),
		logger.UserID(userID),
		logger.Plan(grant.Plan.String()),
		logger.Duration(time.Since(started)),
		slog.Int("remaining", grant.Remaining),
	)

	return handler.JSON(res, handler.WithMeta(usageMeta{
		Plan:      grant.Plan.String(),
		Used:      grant.Used,
		Max:       grant.Max,
		Remaining: grant.Remaining,
	}))
}

func maxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
