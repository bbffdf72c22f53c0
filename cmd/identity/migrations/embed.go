// Package migrations embeds the goose SQL migrations for the identity schema.
// Statements are unqualified; the runner sets search_path to the target schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
