package identity

import "strings"

// Role is a closed set of authorization levels.
// The zero value is RoleUnknown and is never authorized for anything.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleStandard
	RoleAdmin
)

// ParseRole maps a stored role name to a Role. "user" and "standard" are the
// same level. Unrecognized names map to RoleUnknown.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "standard":
		return RoleStandard
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

// String returns the stored name of the role.
func (r Role) String() string {
	switch r {
	case RoleStandard:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdmin
}

// IsAuthorized reports whether a caller with role may access something that
// requires required. Admin implies standard. Unknown roles never pass, and
// nothing can require RoleUnknown.
func IsAuthorized(role, required Role) bool {
	if !role.Valid() || !required.Valid() {
		return false
	}
	return role >= required
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}
