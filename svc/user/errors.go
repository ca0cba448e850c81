package user

import "errors"

var (
	ErrNotFound    = errors.New("user not found")
	ErrMissingID   = errors.New("user id is required")
	ErrStoreFailed = errors.New("user store operation failed")
)
