// Package migrations embeds the SQL migration files consumed by
// golang-migrate's iofs source.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
