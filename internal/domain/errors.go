package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrInvalidShares        = errors.New("invalid investor shares")
	ErrUnknownPurchaserType = errors.New("unknown purchaser type")
	ErrCycleClosed          = errors.New("cycle already closed")
	ErrPropertyMismatch     = errors.New("cycle and property do not match")
	ErrMissingCounterpart   = errors.New("missing counterpart identity")
	ErrLockHeld             = errors.New("lock already held")
)
