package session

import "errors"

var (
	// ErrSessionNotFound is returned by stores when no record matches a token hash.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateToken is returned by stores when a token hash collides with an existing record.
	ErrDuplicateToken = errors.New("duplicate refresh token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
