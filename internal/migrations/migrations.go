// Package migrations embeds the goose SQL migrations. The SQL sticks to the
// subset understood by both SQLite and PostgreSQL.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
