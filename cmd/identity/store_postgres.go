package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"warden/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Credential Store over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store never closes it.
// - Schema/table identifiers are quoted to avoid SQL injection via identifiers.
// - Locked reads take pg_advisory_xact_lock on the normalized key before
//   SELECT ... FOR UPDATE, so a key with no row yet is serialized as well.
// - Unique constraints are the final guard and map to ConflictError.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// DefaultSchema is the schema used when WithSchema is not given.
const DefaultSchema = "warden"

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store.
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const pgUserColumns = `id, username, email, password_digest, verified, created_at, updated_at, verified_at`

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BeginTx opens a READ COMMITTED read-write transaction.
func (s *PostgresStore) BeginTx(ctx context.Context) (Tx, error) {
	const op = "identity.BeginTx"

	if s == nil || s.pool == nil {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx, users: pgIdent(s.schema, "users")}, nil
}

// FindByUsername is an unlocked lookup outside any transaction.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.FindByUsername"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	norm := NormalizeUsername(username)
	if norm == "" {
		return User{}, invalid(op, "username is required")
	}
	return pgFindUser(ctx, op, s.pool, pgIdent(s.schema, "users"), "username_norm", norm, false)
}

// FindByEmail is an unlocked lookup outside any transaction.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.FindByEmail"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return User{}, invalid(op, "email is required")
	}
	return pgFindUser(ctx, op, s.pool, pgIdent(s.schema, "users"), "email_norm", norm, false)
}

type pgTx struct {
	tx    pgx.Tx
	users string
	done  bool
}

func (t *pgTx) FindByUsername(ctx context.Context, username string, lockForUpdate bool) (User, error) {
	const op = "identity.Tx.FindByUsername"

	if t.done {
		return User{}, txDone(op)
	}
	norm := NormalizeUsername(username)
	if norm == "" {
		return User{}, invalid(op, "username is required")
	}
	if lockForUpdate {
		if err := t.advisoryLock(ctx, usernameLockKey(norm)); err != nil {
			return User{}, err
		}
	}
	return pgFindUser(ctx, op, t.tx, t.users, "username_norm", norm, lockForUpdate)
}

func (t *pgTx) FindByEmail(ctx context.Context, email string, lockForUpdate bool) (User, error) {
	const op = "identity.Tx.FindByEmail"

	if t.done {
		return User{}, txDone(op)
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return User{}, invalid(op, "email is required")
	}
	if lockForUpdate {
		if err := t.advisoryLock(ctx, emailLockKey(norm)); err != nil {
			return User{}, err
		}
	}
	return pgFindUser(ctx, op, t.tx, t.users, "email_norm", norm, lockForUpdate)
}

func (t *pgTx) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Tx.Create"

	if t.done {
		return User{}, txDone(op)
	}
	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}

	row := t.tx.QueryRow(ctx,
		`INSERT INTO `+t.users+` (
		     id, username, username_norm, email, email_norm,
		     password_digest, verified, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $7)
		 RETURNING `+pgUserColumns,
		id,
		in.Username,
		NormalizeUsername(in.Username),
		in.Email,
		NormalizeEmail(in.Email),
		in.PasswordDigest,
		in.Now,
	)

	u, err := pgScanUser(row)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

func (t *pgTx) Update(ctx context.Context, u User, in UpdateUserInput) (User, error) {
	const op = "identity.Tx.Update"

	if t.done {
		return User{}, txDone(op)
	}
	in, err := validateUpdate(op, u, in)
	if err != nil {
		return User{}, err
	}

	sets := []string{"updated_at = $2"}
	args := []any{u.ID, in.Now}
	if in.MarkVerified {
		sets = append(sets, "verified = TRUE", "verified_at = COALESCE(verified_at, $2)")
	}
	if in.PasswordDigest != nil {
		args = append(args, *in.PasswordDigest)
		sets = append(sets, fmt.Sprintf("password_digest = $%d", len(args)))
	}

	row := t.tx.QueryRow(ctx,
		`UPDATE `+t.users+`
		    SET `+strings.Join(sets, ", ")+`
		  WHERE id = $1
		RETURNING `+pgUserColumns,
		args...,
	)

	out, err := pgScanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, notFoundUser(op)
	}
	if err != nil {
		return User{}, err
	}
	return out, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	const op = "identity.Tx.Commit"

	if t.done {
		return txDone(op)
	}
	t.done = true
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// advisoryLock serializes locked reads on key for the rest of the transaction,
// including keys that have no row yet.
func (t *pgTx) advisoryLock(ctx context.Context, key string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

// ---- helpers ----

func pgFindUser(ctx context.Context, op string, q pgQuerier, users, column, key string, lock bool) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	// column is always one of the package's own constants.
	sql := `SELECT ` + pgUserColumns + ` FROM ` + users + ` WHERE ` + column + ` = $1`
	if lock {
		sql += ` FOR UPDATE`
	}

	u, err := pgScanUser(q.QueryRow(ctx, sql, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, notFoundUser(op)
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func pgScanUser(row pgx.Row) (User, error) {
	var (
		u          User
		verifiedAt *time.Time
	)
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordDigest,
		&u.Verified,
		&u.CreatedAt,
		&u.UpdatedAt,
		&verifiedAt,
	); err != nil {
		return User{}, err
	}
	u.VerifiedAt = verifiedAt
	return u, nil
}

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_username_norm":
		return "username", true
	case "uq_users_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}
