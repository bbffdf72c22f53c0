package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestService(t *testing.T, clk *fakeClock) *Service {
	t.Helper()
	s, err := NewService(Config{Secret: []byte(testSecret)}, WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return s
}

func TestNewService_SecretPolicy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		secret string
		want   error
	}{
		{name: "empty", secret: "", want: ErrSecretMissing},
		{name: "blank", secret: "   ", want: ErrSecretMissing},
		{name: "short", secret: "too-short", want: ErrSecretTooShort},
		{name: "ok", secret: testSecret, want: nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewService(Config{Secret: []byte(tc.secret)})
			if !errors.Is(err, tc.want) {
				t.Fatalf("NewService(%q) err=%v want=%v", tc.secret, err, tc.want)
			}
		})
	}
}

func TestIssueVerify_LoginClaims(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestService(t, clk)

	tok, exp, err := s.Issue(Claims{UserID: "01HX", Username: "alice", Purpose: PurposeLogin}, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if !exp.Equal(clk.t.Add(time.Hour)) {
		t.Fatalf("expiry=%v want=%v", exp, clk.t.Add(time.Hour))
	}

	got, err := s.Verify(tok, PurposeLogin)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if got.UserID != "01HX" || got.Username != "alice" {
		t.Fatalf("claims mismatch: %+v", got)
	}
	if !got.ExpiresAt.Equal(exp) {
		t.Fatalf("claims expiry=%v want=%v", got.ExpiresAt, exp)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestService(t, clk)

	tok, _, err := s.Issue(Claims{Email: "alice@example.com", Purpose: PurposePasswordReset}, 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	clk.t = clk.t.Add(14 * time.Minute)
	if _, err := s.Verify(tok, PurposePasswordReset); err != nil {
		t.Fatalf("expected token valid before expiry, got %v", err)
	}

	clk.t = clk.t.Add(2 * time.Minute)
	if _, err := s.Verify(tok, PurposePasswordReset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestVerify_RejectsWrongPurpose(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.Now()}
	s := newTestService(t, clk)

	tok, _, err := s.Issue(Claims{Email: "alice@example.com", Purpose: PurposeVerifyEmail}, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := s.Verify(tok, PurposePasswordReset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := s.Verify(tok, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty purpose, got %v", err)
	}
}

func TestVerify_RejectsForeignSecretAndTampering(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.Now()}
	s := newTestService(t, clk)

	other, err := NewService(Config{Secret: []byte(strings.Repeat("z", 40))}, WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}

	foreign, _, err := other.Issue(Claims{Email: "alice@example.com", Purpose: PurposeVerifyEmail}, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := s.Verify(foreign, PurposeVerifyEmail); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}

	alice, _, err := s.Issue(Claims{Email: "alice@example.com", Purpose: PurposeVerifyEmail}, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	mallory, _, err := s.Issue(Claims{Email: "mallory@example.com", Purpose: PurposeVerifyEmail}, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	a := strings.Split(alice, ".")
	m := strings.Split(mallory, ".")
	spliced := a[0] + "." + m[1] + "." + a[2]
	if _, err := s.Verify(spliced, PurposeVerifyEmail); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for spliced payload, got %v", err)
	}

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := s.Verify(raw, PurposeVerifyEmail); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q) expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestVerify_RejectsUnsignedToken(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.Now()}
	s := newTestService(t, clk)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			IssuedAt:  jwt.NewNumericDate(clk.t),
			ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Hour)),
		},
		Email:   "alice@example.com",
		Purpose: PurposeVerifyEmail,
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}

	if _, err := s.Verify(raw, PurposeVerifyEmail); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg=none, got %v", err)
	}
}

func TestIssue_InputChecks(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeClock{t: time.Now()})

	if _, _, err := s.Issue(Claims{Email: "a@b.co", Purpose: PurposeVerifyEmail}, 0); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
	if _, _, err := s.Issue(Claims{Email: "a@b.co"}, time.Hour); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
}

func TestSecretFromEnv(t *testing.T) {
	t.Setenv(SecretEnvKey, "")
	if _, err := SecretFromEnv(); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}

	t.Setenv(SecretEnvKey, "short")
	if _, err := SecretFromEnv(); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}

	t.Setenv(SecretEnvKey, "  "+testSecret+"  ")
	b, err := SecretFromEnv()
	if err != nil {
		t.Fatalf("SecretFromEnv error: %v", err)
	}
	if string(b) != testSecret {
		t.Fatalf("secret not trimmed: %q", b)
	}
}
