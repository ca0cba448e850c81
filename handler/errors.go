package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrymomot/imgcompare/binder"
)

var ErrNilResponse = errors.New("handler returned nil response")

// Machine-readable error codes returned to clients.
const (
	CodeNoPlan              = "NO_PLAN"
	CodeLimitExceeded       = "LIMIT_EXCEEDED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeMalformedInput      = "MALFORMED_INPUT"
	CodeInternal            = "INTERNAL_ERROR"
)

// HTTPError is an error with a status and a stable code.
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e HTTPError) Error() string { return e.Message }

var (
	ErrUnauthorized     = HTTPError{http.StatusUnauthorized, CodeUnauthorized, "authentication required"}
	ErrNoPlan           = HTTPError{http.StatusForbidden, CodeNoPlan, "an active subscription is required"}
	ErrLimitExceeded    = HTTPError{http.StatusTooManyRequests, CodeLimitExceeded, "daily comparison limit reached"}
	ErrRateLimited      = HTTPError{http.StatusTooManyRequests, CodeRateLimited, "too many requests"}
	ErrMalformedInput   = HTTPError{http.StatusBadRequest, CodeMalformedInput, "malformed input"}
	ErrInferenceFailed  = HTTPError{http.StatusBadGateway, CodeUpstreamUnavailable, "comparison service unavailable"}
	ErrServiceUnhealthy = HTTPError{http.StatusServiceUnavailable, CodeUpstreamUnavailable, "billing or quota service unavailable"}
	ErrInternal         = HTTPError{http.StatusInternalServerError, CodeInternal, "internal error"}
)

// ErrorMapping pairs a sentinel error with the HTTPError sent for it.
// An empty Message is replaced by the first line of the matched error.
type ErrorMapping struct {
	Err  error
	HTTP HTTPError
}

// ErrorTable maps sentinel errors to client errors. Entries are checked in
// order with errors.Is, so the first match wins for joined errors.
type ErrorTable []ErrorMapping

// Lookup returns the HTTPError of the first entry matching err.
func (t ErrorTable) Lookup(err error) (HTTPError, bool) {
	for _, m := range t {
		if errors.Is(err, m.Err) {
			he := m.HTTP
			if he.Message == "" {
				he.Message = rootMessage(err)
			}
			return he, true
		}
	}
	return HTTPError{}, false
}

// bindErrors covers failures raised while decoding the request.
var bindErrors = ErrorTable{
	{binder.ErrInvalidJSON, HTTPError{Status: http.StatusBadRequest, Code: CodeMalformedInput}},
	{binder.ErrInvalidForm, HTTPError{Status: http.StatusBadRequest, Code: CodeMalformedInput}},
	{binder.ErrFileTooLarge, HTTPError{Status: http.StatusBadRequest, Code: CodeMalformedInput}},
	{binder.ErrMissingContentType, HTTPError{Status: http.StatusBadRequest, Code: CodeMalformedInput}},
	{binder.ErrUnsupportedMediaType, HTTPError{Status: http.StatusBadRequest, Code: CodeMalformedInput}},
	{context.DeadlineExceeded, ErrServiceUnhealthy},
}

// Classify maps err to the HTTPError sent to the client. HTTPError and
// ValidationError values are used as is; other errors are looked up in
// tables, then in the binder errors. Unknown errors become ErrInternal so
// internals never leak.
func Classify(err error, tables ...ErrorTable) HTTPError {
	var he HTTPError
	var ve ValidationError
	switch {
	case err == nil:
		return ErrInternal
	case errors.As(err, &he):
		return he
	case errors.As(err, &ve):
		return HTTPError{http.StatusBadRequest, CodeMalformedInput, ve.Error()}
	}
	for _, t := range tables {
		if he, ok := t.Lookup(err); ok {
			return he
		}
	}
	if he, ok := bindErrors.Lookup(err); ok {
		return he
	}
	return ErrInternal
}

// rootMessage returns the first line of a joined error chain.
func rootMessage(err error) string {
	msg := err.Error()
	for i := range len(msg) {
		if msg[i] == '\n' {
			return msg[:i]
		}
	}
	return msg
}
