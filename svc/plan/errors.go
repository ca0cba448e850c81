package plan

import "errors"

var (
	ErrUnknownTier    = errors.New("unknown plan tier")
	ErrDuplicatePrice = errors.New("price id mapped to more than one tier")
)
