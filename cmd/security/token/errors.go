package token

import "errors"

// Public, stable errors for callers.
var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrSecretMissing  = errors.New("token secret missing")
	ErrSecretTooShort = errors.New("token secret too short")
	ErrInvalidTTL     = errors.New("token ttl must be positive")
	ErrInvalidPurpose = errors.New("token purpose missing")
)
