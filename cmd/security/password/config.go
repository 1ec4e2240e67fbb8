package password

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds what Hash accepts for new passwords. Verify ignores it
// apart from MaxInputBytes, so stricter policies never lock out existing users.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak refuses a short list of trivially guessable values.
	RejectVeryWeak bool
}

// MaxInputBytes bounds any password accepted for hashing or verification.
// bcrypt ignores everything past 72 bytes, argon2id has no such limit.
const MaxInputBytes = 1024

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the baseline used for interactive logins.
func DefaultConfig() Config {
	threads := min(max(runtime.NumCPU(), 1), 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: MaxInputBytes,
		},
	}
}

// envUint describes one bounded numeric setting.
type envUint struct {
	key      string
	min, max uint64
	set      func(*Config, uint64)
}

var envUints = []envUint{
	{"SESSIOND_PASSWORD_MIN_LEN", 1, 1024, func(c *Config, v uint64) { c.Policy.MinLength = int(v) }},
	{"SESSIOND_PASSWORD_MAX_LEN", 1, MaxInputBytes, func(c *Config, v uint64) { c.Policy.MaxLength = int(v) }},
	{"SESSIOND_ARGON2_MEMORY_KIB", 8 * 1024, 1024 * 1024, func(c *Config, v uint64) { c.Params.MemoryKiB = uint32(v) }},
	{"SESSIOND_ARGON2_ITERATIONS", 1, 20, func(c *Config, v uint64) { c.Params.Iterations = uint32(v) }},
	{"SESSIOND_ARGON2_PARALLELISM", 1, 64, func(c *Config, v uint64) { c.Params.Parallelism = uint8(v) }},
	{"SESSIOND_ARGON2_SALT_LEN", 8, 64, func(c *Config, v uint64) { c.Params.SaltLength = uint32(v) }},
	{"SESSIOND_ARGON2_KEY_LEN", 16, 64, func(c *Config, v uint64) { c.Params.KeyLength = uint32(v) }},
}

// FromEnv loads config from environment variables. Unset variables keep
// their DefaultConfig value; set but invalid ones are an error.
//
//	SESSIOND_PASSWORD_MIN_LEN, SESSIOND_PASSWORD_MAX_LEN
//	SESSIOND_PASSWORD_REJECT_VERY_WEAK (bool)
//	SESSIOND_ARGON2_MEMORY_KIB, SESSIOND_ARGON2_ITERATIONS, SESSIOND_ARGON2_PARALLELISM
//	SESSIOND_ARGON2_SALT_LEN, SESSIOND_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	for _, e := range envUints {
		raw, ok := os.LookupEnv(e.key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("%s: not an unsigned integer", e.key)
		}
		if v < e.min || v > e.max {
			return Config{}, fmt.Errorf("%s: out of range [%d..%d]", e.key, e.min, e.max)
		}
		e.set(&cfg, v)
	}

	if raw, ok := os.LookupEnv("SESSIOND_PASSWORD_REJECT_VERY_WEAK"); ok && strings.TrimSpace(raw) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("SESSIOND_PASSWORD_REJECT_VERY_WEAK: %w", err)
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf("password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength, cfg.Policy.MaxLength)
	}
	return cfg, nil
}
