package binder

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMissingContentType   = errors.New("missing content type")
	ErrInvalidJSON          = errors.New("invalid JSON")
	ErrInvalidForm          = errors.New("invalid form data")
	ErrFileTooLarge         = errors.New("uploaded file too large")
	// ErrNotApplicable lets a binder decline a request it does not handle.
	ErrNotApplicable = errors.New("binder not applicable")
)
