package authn

import "errors"

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidConfig = errors.New("invalid authn configuration")
)
