package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// MinHMACKeyBytes is the smallest accepted HMAC key.
	MinHMACKeyBytes = 32

	minTokenBytes = 16
	maxTokenBytes = 128
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Hasher hashes refresh tokens with a fixed server-side key.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher for key. The key must be at least MinHMACKeyBytes long.
func NewHasher(key []byte) (*Hasher, error) {
	if len(key) == 0 {
		return nil, ErrHMACKeyMissing
	}
	if len(key) < MinHMACKeyBytes {
		return nil, ErrHMACKeyTooShort
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}, nil
}

// Hash returns the storage digest of a refresh token.
func (h *Hasher) Hash(token string) string {
	return HashHMACSHA256Hex(token, h.key)
}

// Equal compares two hex digests in constant time.
func Equal(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// NewOpaque returns n random bytes encoded as unpadded base64url.
func NewOpaque(n int) (string, error) {
	if n < minTokenBytes || n > maxTokenBytes {
		return "", fmt.Errorf("%w: %d", ErrTokenSize, n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
