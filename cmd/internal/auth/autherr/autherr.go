// Package autherr is the error taxonomy shared by the session, login, gate
// and rate-limit packages.
//
// Every failure crossing a service boundary is an *Error carrying one Kind
// (what the caller should do about it) and, optionally, one Reason (what
// exactly happened, for logs and audit). errors.Is matches either, as well as
// the wrapped cause.
package autherr

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds. These drive the external status mapping.
var (
	ErrValidation           = errors.New("validation_error")
	ErrAuthenticationFailed = errors.New("authentication_failed")
	ErrRateLimited          = errors.New("rate_limited")
	ErrPersistence          = errors.New("persistence_failure")
	ErrUnavailable          = errors.New("unavailable")
)

// Reasons. Internal detail; never shown to clients.
var (
	ErrBadSignature    = errors.New("bad_signature")
	ErrExpired         = errors.New("expired")
	ErrMalformed       = errors.New("malformed")
	ErrBadCredentials  = errors.New("bad_credentials")
	ErrUnknownUser     = errors.New("unknown_user")
	ErrNotFound        = errors.New("not_found")
	ErrRevoked         = errors.New("revoked")
	ErrReplaySuspected = errors.New("replay_suspected")
	ErrDuplicateToken  = errors.New("duplicate_token")
	ErrTimeout         = errors.New("timeout")
)

// Error is the typed error returned by auth operations.
type Error struct {
	Op     string
	Kind   error
	Reason error
	Err    error
}

// New builds an *Error. reason and cause may be nil.
func New(op string, kind, reason, cause error) *Error {
	return &Error{Op: op, Kind: kind, Reason: reason, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.Reason != nil {
		fmt.Fprintf(&b, " (%v)", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes kind, reason and cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 3)
	for _, err := range []error{e.Kind, e.Reason, e.Err} {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// KindOf returns the Kind of err, or nil when err carries no known kind.
func KindOf(err error) error {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != nil {
		return ae.Kind
	}
	for _, k := range []error{ErrValidation, ErrAuthenticationFailed, ErrRateLimited, ErrPersistence, ErrUnavailable} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ReasonOf returns the Reason of err, or nil.
func ReasonOf(err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return nil
}

// Validation is shorthand for a validation failure with a reason message.
func Validation(op, msg string) *Error {
	return New(op, ErrValidation, nil, errors.New(msg))
}

// Persistence wraps a storage failure.
func Persistence(op string, cause error) *Error {
	return New(op, ErrPersistence, nil, cause)
}

// Rejected builds an authentication failure with a specific reason.
func Rejected(op string, reason error) *Error {
	return New(op, ErrAuthenticationFailed, reason, nil)
}

// Label returns the most specific name of err for logs and audit: the reason
// when set, else the kind. It is never sent to clients.
func Label(err error) string {
	if err == nil {
		return ""
	}
	if r := ReasonOf(err); r != nil {
		return r.Error()
	}
	if k := KindOf(err); k != nil {
		return k.Error()
	}
	return "error"
}
