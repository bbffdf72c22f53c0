package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// fastConfig keeps Argon2id cheap so tests stay quick.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()

	h, err := cfg.Hash("pw123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(h, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %q", h)
	}

	cases := []struct {
		name string
		pw   string
		want bool
	}{
		{name: "match", pw: "pw123", want: true},
		{name: "mismatch", pw: "wrong", want: false},
		{name: "empty", pw: "", want: false},
	}
	for _, tc := range cases {
		ok, err := cfg.Verify(h, tc.pw)
		if err != nil {
			t.Fatalf("%s: Verify error: %v", tc.name, err)
		}
		if ok != tc.want {
			t.Fatalf("%s: Verify=%v want=%v", tc.name, ok, tc.want)
		}
	}
}

func TestHash_SaltsEveryDigest(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	a, err := cfg.Hash("same secret")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := cfg.Hash("same secret")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct digests for the same secret")
	}
}

func TestValidate_MinMax(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(""); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort for empty, got %v", err)
	}
	if err := cfg.Validate("pw123"); err != nil {
		t.Fatalf("default policy should accept short secrets, got %v", err)
	}

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

func TestHash_EnforcesPolicy(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.Policy.MaxLength = 8
	if _, err := cfg.Hash("longer than eight"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()

	for _, enc := range []string{
		"not-a-hash",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=19$m=999999999,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$2b$31$abcdefghijklmnopqrstuuABCDEFGHIJKLMNOPQRSTUVWXYZ01234",
	} {
		ok, err := cfg.Verify(enc, "whatever")
		if err != ErrInvalidHash {
			t.Fatalf("Verify(%q) expected ErrInvalidHash, got %v", enc, err)
		}
		if ok {
			t.Fatalf("Verify(%q) expected false", enc)
		}
	}
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	t.Parallel()

	legacy, err := bcrypt.GenerateFromPassword([]byte("pw123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	cfg := fastConfig()
	if !cfg.IsLegacy(string(legacy)) {
		t.Fatalf("expected bcrypt digest to be reported as legacy")
	}

	ok, err := cfg.Verify(string(legacy), "pw123")
	if err != nil || !ok {
		t.Fatalf("expected legacy match, ok=%v err=%v", ok, err)
	}
	ok, err = cfg.Verify(string(legacy), "wrong")
	if err != nil || ok {
		t.Fatalf("expected legacy mismatch, ok=%v err=%v", ok, err)
	}

	fresh, err := cfg.Hash("pw123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if cfg.IsLegacy(fresh) {
		t.Fatalf("argon2id digest must not be reported as legacy")
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true

	for _, pw := range []string{"password", "11111111", "1234", "qwerty123"} {
		if err := cfg.Validate(pw); err != ErrWeakPassword {
			t.Fatalf("Validate(%q) expected ErrWeakPassword, got %v", pw, err)
		}
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestVerify_CostCeilingFollowsConfig(t *testing.T) {
	t.Parallel()

	writer := fastConfig()
	writer.Params.MemoryKiB = 32 * 1024
	digest, err := writer.Hash("pw123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	halved := fastConfig()
	halved.Params.MemoryKiB = 16 * 1024
	if ok, err := halved.Verify(digest, "pw123"); err != nil || !ok {
		t.Fatalf("halved config: ok=%v err=%v", ok, err)
	}

	quartered := fastConfig()
	quartered.Params.MemoryKiB = 8 * 1024
	if _, err := quartered.Verify(digest, "pw123"); err != ErrInvalidHash {
		t.Fatalf("quartered config: expected ErrInvalidHash, got %v", err)
	}
}
