package compare

import "errors"

var (
	ErrUpstream       = errors.New("inference service unavailable")
	ErrCircuitOpen    = errors.New("inference circuit open")
	ErrMalformedInput = errors.New("malformed input")
	ErrInvalidConfig  = errors.New("invalid inference client config")
)
