// Package migrations embeds the goose migration scripts for the Postgres
// account provider.
package migrations

import "embed"

// Migrations holds the SQL migration files, applied in lexical order.
//
//go:embed *.sql
var Migrations embed.FS
