package token

import (
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SecretEnvKey is the env var name for the signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "WARDEN_TOKEN_SECRET"

	// MinSecretBytes is the minimum accepted HMAC-SHA256 secret size.
	MinSecretBytes = 32

	DefaultIssuer = "warden"
)

// Purpose binds a token to the single flow that may consume it.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposeLogin         Purpose = "login"
	PurposePasswordReset Purpose = "password_reset"
)

// Claims is the identity payload carried by a token.
// Verification and reset tokens carry Email; login tokens carry UserID and Username.
type Claims struct {
	Email    string
	UserID   string
	Username string
	Purpose  Purpose

	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Email    string  `json:"email,omitempty"`
	Username string  `json:"usr,omitempty"`
	Purpose  Purpose `json:"pur"`
}

// Config is the immutable token configuration.
type Config struct {
	Secret []byte
	Issuer string
}

// Service issues and verifies purpose-bound HS256 tokens.
// It is safe for concurrent use.
type Service struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService validates cfg and returns a ready Service.
// An empty or short secret is rejected so tokens can never be signed with a guessable key.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	secret := []byte(strings.TrimSpace(string(cfg.Secret)))
	if len(secret) == 0 {
		return nil, ErrSecretMissing
	}
	if len(secret) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}

	s := &Service{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	return s, nil
}

// SecretFromEnv returns the configured secret bytes (trimmed), enforcing MinSecretBytes.
func SecretFromEnv() ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(SecretEnvKey))
	if raw == "" {
		return nil, ErrSecretMissing
	}
	b := []byte(raw)
	if len(b) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}
	return b, nil
}

// Issue signs c with an absolute expiry of now+ttl and returns the token and that expiry.
func (s *Service) Issue(c Claims, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, ErrInvalidTTL
	}
	if c.Purpose == "" {
		return "", time.Time{}, ErrInvalidPurpose
	}

	// NumericDate has second precision.
	now := s.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:    c.Email,
		Username: c.Username,
		Purpose:  c.Purpose,
	})

	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, structure, expiry and purpose of raw.
// Every failure is reported as ErrInvalidToken.
func (s *Service) Verify(raw string, want Purpose) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || want == "" {
		return Claims{}, ErrInvalidToken
	}

	var jc jwtClaims
	t, err := s.parser.ParseWithClaims(raw, &jc, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !t.Valid {
		return Claims{}, ErrInvalidToken
	}
	if jc.Purpose != want {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Email:    jc.Email,
		UserID:   jc.Subject,
		Username: jc.Username,
		Purpose:  jc.Purpose,
	}
	if jc.IssuedAt != nil {
		out.IssuedAt = jc.IssuedAt.Time
	}
	if jc.ExpiresAt != nil {
		out.ExpiresAt = jc.ExpiresAt.Time
	}
	return out, nil
}
