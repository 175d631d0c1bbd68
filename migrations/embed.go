// Package migrations embeds the SQL schema applied by cmd/migrate
package migrations

import "embed"

// Postgres holds the postgres migrations, applied in file name order
//
//go:embed postgres/*.sql
var Postgres embed.FS
