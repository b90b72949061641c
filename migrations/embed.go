package migrations

import "embed"

// FS holds the ordered schema migrations applied on startup
//
//go:embed *.sql
var FS embed.FS
