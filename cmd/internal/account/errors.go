package account

import (
	"errors"
	"fmt"
)

// Kind classifies a failed operation.
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindInvalidToken Kind = "invalid_token"
	KindInternal     Kind = "internal_error"
)

// Error is returned by every Service operation.
// Msg is safe to show to callers; Err is the internal cause and is only logged.
type Error struct {
	Op   string
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return msgInternal
}

const (
	msgInternal     = "internal error"
	msgExists       = "identity already exists"
	msgUserNotFound = "user not found"
	msgBadPassword  = "incorrect password"
	msgBadToken     = "invalid or expired token"
)

func failValidation(op, msg string, cause error) error {
	return &Error{Op: op, Kind: KindValidation, Msg: msg, Err: cause}
}

func failConflict(op string, cause error) error {
	return &Error{Op: op, Kind: KindConflict, Msg: msgExists, Err: cause}
}

func failNotFound(op string, cause error) error {
	return &Error{Op: op, Kind: KindNotFound, Msg: msgUserNotFound, Err: cause}
}

func failUnauthorized(op string) error {
	return &Error{Op: op, Kind: KindUnauthorized, Msg: msgBadPassword}
}

func failInvalidToken(op string, cause error) error {
	return &Error{Op: op, Kind: KindInvalidToken, Msg: msgBadToken, Err: cause}
}

func failInternal(op string, cause error) error {
	return &Error{Op: op, Kind: KindInternal, Msg: msgInternal, Err: cause}
}
