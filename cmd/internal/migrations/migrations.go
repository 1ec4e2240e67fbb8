// Package migrations embeds the goose SQL migrations for the sessiond schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
