// Package migrations embeds the service's SQL schema.
package migrations

import "embed"

// FS holds the *.up.sql files applied at startup.
//
//go:embed *.sql
var FS embed.FS
