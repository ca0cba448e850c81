package billing

import (
	"github.com/dmitrymomot/imgcompare/handler"
	"github.com/dmitrymomot/imgcompare/pkg/authn"
	"github.com/dmitrymomot/imgcompare/svc/ledger"
	"github.com/dmitrymomot/imgcompare/svc/quota"
)

// Errors maps the failures of the billing endpoints to client errors.
var Errors = handler.ErrorTable{
	{Err: authn.ErrUnauthorized, HTTP: handler.ErrUnauthorized},
	{Err: authn.ErrMissingToken, HTTP: handler.ErrUnauthorized},
	{Err: ledger.ErrUnavailable, HTTP: handler.ErrServiceUnhealthy},
	{Err: ledger.ErrSearchUnavailable, HTTP: handler.ErrServiceUnhealthy},
	{Err: quota.ErrStoreUnavailable, HTTP: handler.ErrServiceUnhealthy},
}
