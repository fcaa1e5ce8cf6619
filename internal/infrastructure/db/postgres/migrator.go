package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/protomind/user-service/internal/core/ports"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is a pair of SQL scripts sharing a version prefix.
type Migration struct {
	Version string
	Up      string
	Down    string
}

// ParseMigrations reads <version>.up.sql / <version>.down.sql pairs from dir
// and returns them sorted by version. Each version needs both scripts.
func ParseMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := map[string]*Migration{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".sql")
		dot := strings.LastIndex(name, ".")
		if dot < 0 {
			return nil, fmt.Errorf("migration %s: missing direction", e.Name())
		}
		version, direction := name[:dot], name[dot+1:]

		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		switch direction {
		case "up":
			m.Up = string(body)
		case "down":
			m.Down = string(body)
		default:
			return nil, fmt.Errorf("migration %s: unknown direction %q", e.Name(), direction)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %s: up and down scripts are both required", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Migrator applies the embedded SQL migrations and tracks them in
// schema_migrations. Every step runs in its own transaction.
type Migrator struct {
	pool       *pgxpool.Pool
	migrations []Migration
	logger     zerolog.Logger
}

var _ ports.Migrator = (*Migrator)(nil)

func NewMigrator(pool *pgxpool.Pool, logger zerolog.Logger) (*Migrator, error) {
	migrations, err := ParseMigrations(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	return &Migrator{pool: pool, migrations: migrations, logger: logger}, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	done := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, mig := range m.migrations {
		if done[mig.Version] {
			continue
		}
		err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, mig.Version)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("migration %s up: %w", mig.Version, err)
		}
		m.logger.Info().Str("version", mig.Version).Msg("migration applied")
		ran = append(ran, mig.Version)
	}
	return ran, nil
}

func (m *Migrator) Down(ctx context.Context, steps int) ([]string, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var reverted []string
	for i := len(m.migrations) - 1; i >= 0 && len(reverted) < steps; i-- {
		mig := m.migrations[i]
		if !done[mig.Version] {
			continue
		}
		err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.Down); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version)
			return err
		})
		if err != nil {
			return reverted, fmt.Errorf("migration %s down: %w", mig.Version, err)
		}
		m.logger.Info().Str("version", mig.Version).Msg("migration reverted")
		reverted = append(reverted, mig.Version)
	}
	return reverted, nil
}

func (m *Migrator) Status(ctx context.Context) ([]ports.MigrationStatus, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ports.MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		out = append(out, ports.MigrationStatus{Version: mig.Version, Applied: done[mig.Version]})
	}
	return out, nil
}
