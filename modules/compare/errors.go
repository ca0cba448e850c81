package compare

import (
	"net/http"

	"github.com/dmitrymomot/imgcompare/handler"
	"github.com/dmitrymomot/imgcompare/pkg/authn"
	comparesvc "github.com/dmitrymomot/imgcompare/svc/compare"
	"github.com/dmitrymomot/imgcompare/svc/entitlement"
	"github.com/dmitrymomot/imgcompare/svc/ledger"
	"github.com/dmitrymomot/imgcompare/svc/quota"
)

// Errors maps the failures of the comparison flow to client errors. Gate
// outcomes come before dependency failures so a joined NoPlan is not
// reported as an outage.
var Errors = handler.ErrorTable{
	{Err: authn.ErrUnauthorized, HTTP: handler.ErrUnauthorized},
	{Err: authn.ErrMissingToken, HTTP: handler.ErrUnauthorized},
	{Err: comparesvc.ErrMalformedInput, HTTP: handler.HTTPError{Status: http.StatusBadRequest, Code: handler.CodeMalformedInput}},
	{Err: entitlement.ErrNoPlan, HTTP: handler.ErrNoPlan},
	{Err: quota.ErrLimitExceeded, HTTP: handler.ErrLimitExceeded},
	{Err: comparesvc.ErrUpstream, HTTP: handler.ErrInferenceFailed},
	{Err: ledger.ErrUnavailable, HTTP: handler.ErrServiceUnhealthy},
	{Err: ledger.ErrSearchUnavailable, HTTP: handler.ErrServiceUnhealthy},
	{Err: quota.ErrStoreUnavailable, HTTP: handler.ErrServiceUnhealthy},
}
