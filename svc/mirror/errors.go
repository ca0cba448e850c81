package mirror

import "errors"

var (
	ErrLogFailed       = errors.New("notification log failed")
	ErrMissingID       = errors.New("notification has no id")
	ErrMirrorNotStored = errors.New("failed to store mirror")
)
