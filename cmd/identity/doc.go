// Package identity owns Warden's user records and the Credential Store
// contract the account flows are built on.
//
// A Store hands out transactions (Tx). Reads inside a Tx may take an
// exclusive lock on the identity key (username or email) which is held until
// Commit or Rollback; this closes the check-then-act window between "does
// this identity exist" and the subsequent insert or update.
//
// Two implementations are provided: PostgresStore (pgx, row locks plus
// transaction-scoped advisory locks) and MemoryStore (per-key locks, used in
// development and tests).
package identity
