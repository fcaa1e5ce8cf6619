package ports

import "context"

// MigrationStatus reports whether a schema migration has been applied.
type MigrationStatus struct {
	Version string
	Applied bool
}

// Migrator applies and reverts versioned schema migrations.
type Migrator interface {
	Up(ctx context.Context) ([]string, error)
	Down(ctx context.Context, steps int) ([]string, error)
	Status(ctx context.Context) ([]MigrationStatus, error)
}
