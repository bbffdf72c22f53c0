package identity

import "strings"

// NormalizeUsername is the comparison form of a username: trimmed and lower-cased.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail is the comparison form of an email address: trimmed and lower-cased.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func usernameLockKey(norm string) string { return "users.username:" + norm }

func emailLockKey(norm string) string { return "users.email:" + norm }
