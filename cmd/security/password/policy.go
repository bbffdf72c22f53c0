package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// commonPasswords are rejected outright when RejectVeryWeak is set.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {},
	"123456": {}, "123456789": {}, "11111111": {},
	"qwerty": {}, "qwerty123": {}, "letmein": {}, "welcome": {},
}

// Validate checks a clear-text password against the policy.
// Length is counted in runes.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	case c.Policy.RejectVeryWeak && looksVeryWeak(password):
		return ErrWeakPassword
	}
	return nil
}

// looksVeryWeak catches blank, single-character, short all-digit and
// well-known passwords. It is not a strength estimator.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}
	if _, ok := commonPasswords[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	allSame, allDigits := true, true
	for _, r := range s {
		if r != first {
			allSame = false
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}
	}
	return allSame || (allDigits && utf8.RuneCountInString(s) < 12)
}
