// Package db holds the SQL migrations of the portal schema.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
