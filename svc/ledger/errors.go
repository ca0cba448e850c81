package ledger

import "errors"

var (
	// ErrUnavailable wraps any failure talking to the external ledger.
	ErrUnavailable = errors.New("billing ledger unavailable")
	// ErrSearchUnavailable reports that the ledger cannot run the requested search.
	// Callers fall back to a plain filtered list.
	ErrSearchUnavailable = errors.New("billing ledger search unavailable")
	ErrInvalidSignature  = errors.New("invalid notification signature")
	ErrMalformedPayload  = errors.New("malformed notification payload")
	ErrNoSecrets         = errors.New("no notification secrets configured")
	ErrInvalidConfig     = errors.New("invalid billing provider configuration")
	ErrNoPortalURL       = errors.New("billing portal returned no url")
)
