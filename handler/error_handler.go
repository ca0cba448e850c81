package handler

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/imgcompare/pkg/logger"
)

// NewErrorHandler logs err at a level matching its class and renders it as JSON.
// Client errors log at info, dependency failures at warn and the rest at error.
// Domain errors are classified with tables, which callers own.
func NewErrorHandler(log *slog.Logger, tables ...ErrorTable) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx Context, err error) {
		he := Classify(err, tables...)
		r := ctx.Request()

		level := slog.LevelError
		switch {
		case he.Status < http.StatusInternalServerError:
			level = slog.LevelInfo
		case he.Code == CodeUpstreamUnavailable:
			level = slog.LevelWarn
		}
		log.LogAttrs(ctx, level, "request failed",
			slog.Int("status", he.Status),
			slog.String("code", he.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
			logger.Component("http"),
		)

		if err := errorResponse(he, err, nil).Render(ctx.ResponseWriter(), r); err != nil {
			log.ErrorContext(ctx, "render error response", logger.Error(err))
		}
	}
}

// Responder adapts the ErrorHandler to plain http middleware such as authn.Middleware.
func Responder(h ErrorHandler) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		h(NewContext(w, r), err)
	}
}
