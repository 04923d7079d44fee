// Package migrations embeds the process table schema into the binary.
package migrations

import "embed"

// FS holds the *.up.sql files, at the root of the filesystem.
//
//go:embed *.sql
var FS embed.FS
