// Package token issues and verifies the short-lived signed tokens used by
// Warden's account flows.
//
// Tokens are HS256 JWTs signed with a process-wide secret injected at
// construction. Each token is bound to a Purpose (email verification, login,
// password reset) and carries an absolute expiry.
//
// Verification failures are deliberately undifferentiated: a tampered,
// malformed, expired or wrong-purpose token all surface as ErrInvalidToken.
//
// Environment:
// - WARDEN_TOKEN_SECRET: signing secret, at least 32 bytes.
package token
