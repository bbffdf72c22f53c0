package app

import (
	"errors"
	"strings"

	"warden/cmd/security/token"
)

// ValidateSecurityConfig enforces Warden's security policy at startup.
// A missing or short token secret is fatal: there is no unsigned or weak-key mode.
func ValidateSecurityConfig(cfg Config) error {
	secret := strings.TrimSpace(cfg.TokenSecret)
	switch {
	case secret == "":
		return errors.New("security policy: " + token.SecretEnvKey + " is missing")
	case len(secret) < token.MinSecretBytes:
		return errors.New("security policy: " + token.SecretEnvKey + " is too short (min 32 bytes)")
	}

	if cfg.Env == "prod" && cfg.NotifyDriver == "log" {
		return errors.New("security policy: WARDEN_NOTIFY_DRIVER=log is not allowed in prod")
	}
	return nil
}
