package migrations

import "embed"

// FS contains embedded SQLite migrations for NPC storage.
//
//go:embed *.sql
var FS embed.FS
