// Package migrations embeds the index schema for golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
