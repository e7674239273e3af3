// Package migrations embeds the SQL schema applied by goose on startup.
// The statements are written to run unchanged on PostgreSQL and SQLite.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
