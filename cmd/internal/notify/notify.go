// Package notify delivers verification and password-reset tokens out of band.
//
// The account flows only see the Gateway interface. Three transports exist:
// Kafka (an event consumed by a mail service), SMTP (direct delivery) and a
// log-only gateway for local development.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Kind selects the message template.
type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

// ErrInvalidMessage reports a message that cannot be delivered as given.
var ErrInvalidMessage = errors.New("notify: invalid message")

// Message is one out-of-band delivery.
type Message struct {
	Kind      Kind
	Address   string
	Token     string
	ExpiresAt time.Time
}

// Gateway sends a message and reports whether delivery was accepted.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

// Validate rejects unknown kinds, empty fields and header-injection attempts.
func (m Message) Validate() error {
	switch m.Kind {
	case KindVerification, KindPasswordReset:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	if strings.TrimSpace(m.Address) == "" || strings.ContainsAny(m.Address, "\r\n") {
		return fmt.Errorf("%w: bad address", ErrInvalidMessage)
	}
	if m.Token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidMessage)
	}
	return nil
}

// Links builds the URLs embedded in messages.
// A base containing "{token}" gets the path-escaped token substituted;
// otherwise "?token=<token>" is appended.
type Links struct {
	VerifyBaseURL string
	ResetBaseURL  string
}

// For returns the link for msg, or "" when no base is configured for its kind.
func (l Links) For(msg Message) string {
	base := l.VerifyBaseURL
	if msg.Kind == KindPasswordReset {
		base = l.ResetBaseURL
	}
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	if strings.Contains(base, "{token}") {
		return strings.ReplaceAll(base, "{token}", url.PathEscape(msg.Token))
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(msg.Token)
}
