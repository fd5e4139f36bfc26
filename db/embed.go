// Package db provides the embedded golang-migrate migrations.
package db

import "embed"

// Migrations holds the numbered up/down SQL files.
//
//go:embed migrations/*.sql
var Migrations embed.FS
