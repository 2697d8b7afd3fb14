// Package migrations holds the PostgreSQL schema as ordered .up.sql files.
package migrations

import "embed"

// FS contains every migration file of the directory.
//
//go:embed *.sql
var FS embed.FS
