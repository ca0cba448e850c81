package quota

import "errors"

var (
	ErrLimitExceeded    = errors.New("daily limit exceeded")
	ErrStoreUnavailable = errors.New("quota store unavailable")
	ErrMissingUserID    = errors.New("missing user id")
)
