// Package migrations embeds the PostgreSQL schema migrations.
//
// SQLite deployments rely on GORM AutoMigrate; PostgreSQL deployments run
// these versioned migrations before the orchestrator starts (see the
// `immichvr migrate` command).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
