package identity

import (
	"context"
	"fmt"
	"strings"

	"warden/cmd/identity/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate creates schema if needed and applies the embedded migrations to it.
// The goose version table lives in the same schema.
func Migrate(ctx context.Context, databaseURL, schema string) (applied int, err error) {
	const op = "identity.Migrate"

	schema = strings.TrimSpace(schema)
	if !pgIdentIsValid(schema) {
		return 0, invalid(op, "invalid schema identifier")
	}

	cfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return 0, fmt.Errorf("%s: parse url: %w", op, err)
	}
	cfg.RuntimeParams["search_path"] = schema

	db := stdlib.OpenDB(*cfg)
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize()); err != nil {
		return 0, fmt.Errorf("%s: create schema: %w", op, err)
	}

	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("%s: provider: %w", op, err)
	}

	results, err := p.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: up: %w", op, err)
	}
	return len(results), nil
}
