package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify_OK(t *testing.T) {
	cfg := DefaultConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "this is a strong password 123!")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := DefaultConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "wrong password")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := DefaultConfig()

	ok, err := cfg.Verify("not-a-hash", "whatever")
	if err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
	if ok {
		t.Fatalf("expected false")
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	if err := cfg.Validate("password"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("11111111"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestVerify_Bcrypt(t *testing.T) {
	cfg := DefaultConfig()

	raw, err := bcrypt.GenerateFromPassword([]byte("admin-secret-42"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ok, err := cfg.Verify(string(raw), "admin-secret-42")
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}

	ok, err = cfg.Verify(string(raw), "admin-secret-43")
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
}

func TestVerify_BcryptMalformed(t *testing.T) {
	cfg := DefaultConfig()

	ok, err := cfg.Verify("$2b$10$tooshort", "whatever")
	if err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
	if ok {
		t.Fatalf("expected false")
	}
}

func TestVerify_UnsupportedScheme(t *testing.T) {
	cfg := DefaultConfig()

	_, err := cfg.Verify("$scrypt$ln=15,r=8,p=1$c2FsdA$aGFzaA", "whatever")
	if err != ErrUnsupportedScheme {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestVerify_OversizedPasswordNeverMatches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MaxLength = MaxInputBytes

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, strings.Repeat("x", MaxInputBytes+1))
	if err != nil || ok {
		t.Fatalf("expected silent mismatch, ok=%v err=%v", ok, err)
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := DefaultConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if cfg.NeedsRehash(h) {
		t.Fatalf("fresh hash should not need rehash")
	}

	stronger := cfg
	stronger.Params.Iterations++
	if !stronger.NeedsRehash(h) {
		t.Fatalf("expected rehash after cost change")
	}

	raw, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if !cfg.NeedsRehash(string(raw)) {
		t.Fatalf("bcrypt hashes should be migrated")
	}
}

func TestVeryWeak(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"Password123":                  true,
		"zzzzzzzzzz":                   true,
		"20240101":                     true,
		"123456789012":                 false,
		"correct horse battery staple": false,
		"   ":                          true,
	}
	for in, want := range cases {
		if got := veryWeak(in); got != want {
			t.Fatalf("veryWeak(%q)=%v want %v", in, got, want)
		}
	}
}

func TestFromEnv_RejectsGarbage(t *testing.T) {
	t.Setenv("SESSIOND_ARGON2_ITERATIONS", "three")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for non-numeric iterations")
	}

	t.Setenv("SESSIOND_ARGON2_ITERATIONS", "")
	t.Setenv("SESSIOND_ARGON2_MEMORY_KIB", "1024")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for memory below 8 MiB")
	}
}
