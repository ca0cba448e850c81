// Package handler adapts typed request handlers to net/http.
//
// # Wrapping handlers
//
// Wrap turns a HandlerFunc[R] into an http.HandlerFunc. It decodes the
// request into R with the configured binders, runs decorators such as
// Validated, calls the handler and renders the Response it returns:
//
//	h := handler.Wrap(m.portal,
//		handler.WithBinders[portalRequest](binder.JSON(false)),
//		handler.WithDecorators(handler.Validated[portalRequest]()),
//		handler.WithErrorHandler[portalRequest](handler.NewErrorHandler(log, Errors)),
//	)
//
// A binder that does not apply to the request returns
// binder.ErrNotApplicable and is skipped.
//
// # Responses
//
// Every body uses the same envelope:
//
//	{"data": ..., "meta": ..., "error": {"code": "LIMIT_EXCEEDED", "message": "..."}}
//
// JSON renders a successful result and Error hands an error to the error
// handler. Responses are sent with Cache-Control: no-store.
//
// # Errors
//
// Failures go to an ErrorHandler. NewErrorHandler logs them at a level
// matching their class and renders the envelope with the status and code
// chosen by Classify.
//
// This package knows no domain errors. Each caller owns an ErrorTable that
// maps its sentinel errors to HTTPError values:
//
//	var Errors = handler.ErrorTable{
//		{Err: entitlement.ErrNoPlan, HTTP: handler.ErrNoPlan},
//		{Err: quota.ErrLimitExceeded, HTTP: handler.ErrLimitExceeded},
//	}
//
// Classify checks HTTPError and ValidationError values first, then the
// tables in order, then binder failures. Anything else becomes ErrInternal
// so internal messages never reach the client.
package handler
