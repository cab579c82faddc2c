package model

import "errors"

var (
	// ErrValidation marks a missing or malformed field. Maps to 400.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown record id. Maps to 404.
	ErrNotFound = errors.New("record not found")
	// ErrConflict marks a violated uniqueness constraint. Maps to 409.
	ErrConflict = errors.New("record already exists")

	ErrUnknownCollection = errors.New("unknown collection")
)
