package identity

import (
	"context"
	"strings"
	"time"
)

// User is a Warden account record.
//
// Username and Email are stored as given (trimmed) and compared in normalized form.
// PasswordDigest is opaque and never empty once a record exists.
// Verified only moves from false to true.
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordDigest string
	Verified       bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	VerifiedAt *time.Time
}

// CreateUserInput describes a new, unverified user.
type CreateUserInput struct {
	Username       string
	Email          string
	PasswordDigest string
	Now            time.Time
}

// UpdateUserInput lists the mutable attributes of a user.
// There is no way to clear Verified.
type UpdateUserInput struct {
	MarkVerified   bool
	PasswordDigest *string
	Now            time.Time
}

// Store is the Credential Store.
// FindBy* on the Store are unlocked, read-only lookups outside any transaction.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	FindByUsername(ctx context.Context, username string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
}

// Tx is a store transaction. It must end with Commit or Rollback;
// Rollback after Commit is a no-op, so callers may always defer Rollback.
//
// With lockForUpdate=true a read takes an exclusive lock on the identity key
// which is held until the transaction ends, whether or not a row exists.
// A Tx is not safe for concurrent use.
type Tx interface {
	FindByUsername(ctx context.Context, username string, lockForUpdate bool) (User, error)
	FindByEmail(ctx context.Context, email string, lockForUpdate bool) (User, error)
	Create(ctx context.Context, in CreateUserInput) (User, error)
	Update(ctx context.Context, u User, in UpdateUserInput) (User, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// WithTx runs fn inside a transaction: it commits when fn returns nil and
// rolls back on error or panic. Panics are re-raised after rollback.
func WithTx(ctx context.Context, st Store, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := st.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	return fn(ctx, tx)
}

func validateCreate(op string, in CreateUserInput) (CreateUserInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	switch {
	case in.Username == "":
		return in, invalid(op, "username is required")
	case in.Email == "":
		return in, invalid(op, "email is required")
	case in.PasswordDigest == "":
		return in, invalid(op, "password digest is required")
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

func validateUpdate(op string, u User, in UpdateUserInput) (UpdateUserInput, error) {
	if strings.TrimSpace(u.ID) == "" {
		return in, invalid(op, "missing user id")
	}
	if !in.MarkVerified && in.PasswordDigest == nil {
		return in, invalid(op, "nothing to update")
	}
	if in.PasswordDigest != nil && *in.PasswordDigest == "" {
		return in, invalid(op, "password digest is required")
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

func cloneUser(u User) User {
	if u.VerifiedAt != nil {
		t := *u.VerifiedAt
		u.VerifiedAt = &t
	}
	return u
}
