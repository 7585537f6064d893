// Package migrations registers the schema migrations applied by the
// `migrate` command and at server start.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects every migration in this package. Each file registers
// itself from init and is versioned by its file name prefix.
var Migrations = migrate.NewMigrations()
