package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrAuthRequired is returned by operations that need a signed-in identity
	// when none is available. It is never retried automatically.
	ErrAuthRequired = errors.New("auth required")

	// ErrNoProject is returned when a fixture refers to a project that is not
	// present in the local store.
	ErrNoProject = errors.New("project not found")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
