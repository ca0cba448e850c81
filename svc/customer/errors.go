package customer

import "errors"

var (
	// ErrCreate wraps a failed customer creation; the ledger error is joined to it.
	ErrCreate  = errors.New("failed to create billing customer")
	ErrPersist = errors.New("failed to persist billing customer id")
)
