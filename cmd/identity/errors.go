package identity

import (
	"errors"
	"strings"
)

// Error kinds. They are stable for errors.Is and for mapping to API status codes.
var (
	ErrInvalidInput = errors.New("identity: invalid input")
	ErrNotFound     = errors.New("identity: user not found")
	ErrConflict     = errors.New("identity: conflict")
)

// OpError ties a kind to the operation that produced it. Msg never carries
// secrets or submitted credentials.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	parts := []string{e.Op, e.Kind.Error()}
	if e.Msg != "" {
		parts = append(parts, e.Msg)
	}
	return strings.Join(parts, ": ")
}

func (e OpError) Unwrap() error { return e.Kind }

// ConflictError reports a uniqueness violation on Field ("email").
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	return OpError{Op: e.Op, Kind: ErrConflict, Msg: e.Field}.Error()
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// IsConflict reports whether err is a uniqueness conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

func invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}
