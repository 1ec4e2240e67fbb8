package password

import "errors"

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
	ErrInvalidHash      = errors.New("invalid password hash")
	// ErrUnsupportedScheme is returned for hashes that are neither argon2id nor bcrypt.
	ErrUnsupportedScheme = errors.New("unsupported password hash scheme")
)
