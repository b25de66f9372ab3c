package service

import "errors"

// Sentinel errors mapped to HTTP statuses in the handlers. Claim
// conflicts deliberately do not appear here: losing a claim race is
// reported as an empty result, not an error.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)
