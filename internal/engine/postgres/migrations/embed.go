// Package migrations embeds the schema of the products table.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
