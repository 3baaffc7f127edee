package postgres

import "embed"

// Migrations holds the schema for loans, product versions and the outbox.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the files.
const MigrationsDir = "migrations"
