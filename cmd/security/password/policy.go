package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks p against the policy. Length counts runes, not bytes.
func (c Config) Validate(p string) error {
	if len(p) > MaxInputBytes {
		return ErrPasswordTooLong
	}
	switch n := utf8.RuneCountInString(p); {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && veryWeak(p) {
		return ErrWeakPassword
	}
	return nil
}

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"123456": {}, "12345678": {}, "123456789": {}, "1234567890": {},
	"qwerty": {}, "qwerty123": {}, "qwertyuiop": {}, "11111111": {},
	"iloveyou": {}, "letmein": {}, "welcome": {}, "admin": {}, "admin123": {},
}

// veryWeak is a small deny check, not a strength estimator.
func veryWeak(p string) bool {
	s := strings.TrimSpace(p)
	if s == "" {
		return true
	}
	if _, ok := commonPasswords[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}

	// PIN-like: digits only and shorter than 12.
	return utf8.RuneCountInString(s) < 12 && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}
