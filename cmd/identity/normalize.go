package identity

import (
	"regexp"
	"strings"
)

// MaxEmailLength follows the RFC 5321 path limit.
const MaxEmailLength = 254

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail reports whether s (already normalized or not) looks like a login email.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > MaxEmailLength {
		return false
	}
	return emailRe.MatchString(s)
}
