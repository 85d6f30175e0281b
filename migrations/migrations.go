// Package migrations embeds the portal's SQL schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
