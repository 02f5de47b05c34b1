// Package migrations embeds the SQL schema applied by `vaxtrack-server migrate up`.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
