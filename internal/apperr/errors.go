// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrStoreInit       = errors.New("seen store init failed")
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrConfig          = errors.New("invalid configuration")
)
