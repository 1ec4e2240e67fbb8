package session

import (
	"context"
	"net"
	"strings"
	"time"
)

// Platform represents the client platform associated with a session.
type Platform string

const (
	// PlatformWeb is a browser-based session.
	PlatformWeb Platform = "web"
	// PlatformIOS is an iOS native session.
	PlatformIOS Platform = "ios"
	// PlatformAndroid is an Android native session.
	PlatformAndroid Platform = "android"
	// PlatformDesktop is a desktop (macOS/Windows/Linux) session.
	PlatformDesktop Platform = "desktop"
	// PlatformUnknown is used when the client platform is not known.
	PlatformUnknown Platform = "unknown"
)

// ParsePlatform maps a client-supplied platform name, defaulting to PlatformUnknown.
func ParsePlatform(s string) Platform {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformWeb, PlatformIOS, PlatformAndroid, PlatformDesktop:
		return p
	default:
		return PlatformUnknown
	}
}

// DeviceContext describes the client device that owns a session.
type DeviceContext struct {
	Platform   Platform
	RememberMe bool
	UserAgent  string
	IP         net.IP
}

// Revocation reasons recorded on ledger rows.
const (
	ReasonRotation      = "rotation"
	ReasonLogout        = "logout"
	ReasonLogoutAll     = "logout_all"
	ReasonReuseDetected = "reuse_detected"
	ReasonAdmin         = "admin"
)

// Record is one refresh-token ledger row.
// RevokedAt only ever moves from nil to a timestamp.
type Record struct {
	ID               string
	OwnerID          string
	TokenHash        string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	RotatedAt        *time.Time
	ReplacedByID     *string
	RevocationReason *string
	Platform         Platform
	UserAgent        string
	IP               string
}

// Usable reports whether the record may still be exchanged at now.
func (r Record) Usable(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// MintFunc receives the locked record during Exchange and returns its successor.
// Returning an error aborts the exchange without changing anything.
type MintFunc func(old Record) (Record, error)

// Store is the refresh-token ledger.
type Store interface {
	// Insert writes a new record. A token hash collision returns ErrDuplicateToken.
	Insert(ctx context.Context, rec Record) error

	// FindByHash returns ErrSessionNotFound when no record matches.
	FindByHash(ctx context.Context, tokenHash string) (Record, error)

	// Revoke revokes the record for tokenHash. Unknown or already revoked
	// records are not an error.
	Revoke(ctx context.Context, now time.Time, tokenHash, reason string) error

	// RevokeAllForOwner revokes every live record of ownerID and returns how many changed.
	RevokeAllForOwner(ctx context.Context, now time.Time, ownerID, reason string) (int64, error)

	// Exchange locks the record for tokenHash and passes it to mint. When mint
	// returns a successor, the old record is marked rotated and the successor
	// inserted in the same atomic unit. Errors from mint are returned as-is.
	Exchange(ctx context.Context, now time.Time, tokenHash string, mint MintFunc) (Record, error)

	// DeleteExpired removes records that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
