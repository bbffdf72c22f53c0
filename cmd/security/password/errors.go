package password

import "errors"

// Policy violations. Their text is shown to callers as a validation message.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
)

// ErrInvalidHash reports a digest that is malformed, unsupported or
// encoded with parameters beyond the configured limits.
var ErrInvalidHash = errors.New("invalid password hash")
