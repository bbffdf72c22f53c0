package account

import "time"

// Status is the outcome of a successful operation.
type Status string

const (
	StatusCreated       Status = "created"
	StatusAuthenticated Status = "authenticated"
	StatusVerified      Status = "verified"
	StatusSent          Status = "sent"
	StatusUpdated       Status = "updated"
)

// Result is returned by successful operations.
// Token and ExpiresAt are only set by Login.
type Result struct {
	Status    Status
	Message   string
	Token     string
	ExpiresAt time.Time
}
