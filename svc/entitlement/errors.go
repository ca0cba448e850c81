package entitlement

import "errors"

// ErrNoPlan means the user has no usable subscription that maps to a plan.
var ErrNoPlan = errors.New("no active plan")
