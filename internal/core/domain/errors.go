package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrStoreDisabled = errors.New("custom cafe store is not configured")
	ErrNoRoute       = errors.New("no route available")
)
