package booking

import "errors"

var (
	ErrValidation  = errors.New("invalid booking request")
	ErrCredential  = errors.New("seller calendar credential unavailable")
	ErrNotFound    = errors.New("user not found")
	ErrProvider    = errors.New("calendar provider failed")
	ErrPersistence = errors.New("persisting appointment failed")
	ErrConflict    = errors.New("slot already reserved")
)
