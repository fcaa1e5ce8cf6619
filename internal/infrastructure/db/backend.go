// Package db opens the configured storage backend and exposes it through the
// core ports.
package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/protomind/user-service/internal/core/ports"
	"github.com/protomind/user-service/internal/infrastructure/config"
	mongostore "github.com/protomind/user-service/internal/infrastructure/db/mongo"
	pgstore "github.com/protomind/user-service/internal/infrastructure/db/postgres"
)

// Backend bundles the adapters of one storage driver.
type Backend struct {
	Driver   string
	Users    ports.UserRepository
	Roles    ports.RoleRepository
	Links    ports.ManagerSecretaryRepository
	Tx       ports.TxRunner
	Media    ports.MediaStore
	Migrator ports.Migrator

	Ping  func(ctx context.Context) error
	Close func(ctx context.Context) error
}

// Open connects to the backend selected by cfg.DBDriver.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.DBDriver {
	case config.DriverMongo:
		return openMongo(ctx, cfg, log)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func openMongo(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	client, database, err := mongostore.Connect(ctx, mongostore.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		return nil, err
	}

	return &Backend{
		Driver:   config.DriverMongo,
		Users:    mongostore.NewUserRepository(database),
		Roles:    mongostore.NewRoleRepository(database),
		Links:    mongostore.NewManagerSecretaryRepository(database),
		Tx:       mongostore.NewTxRunner(client, database, log.With().Str("component", "mongo_tx").Logger()),
		Media:    mongostore.NewMediaStore(database),
		Migrator: mongostore.NewMigrator(database, log.With().Str("component", "migrate").Logger()),
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		Close: client.Disconnect,
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	pool, err := pgstore.NewPool(ctx, pgstore.Config{
		DSN:      cfg.Postgres.DSN,
		MaxConns: cfg.Postgres.MaxConns,
	})
	if err != nil {
		return nil, err
	}

	migrator, err := pgstore.NewMigrator(pool, log.With().Str("component", "migrate").Logger())
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Backend{
		Driver:   config.DriverPostgres,
		Users:    pgstore.NewUserRepository(pool),
		Roles:    pgstore.NewRoleRepository(pool),
		Links:    pgstore.NewManagerSecretaryRepository(pool),
		Tx:       pgstore.NewTxRunner(pool),
		Media:    pgstore.NewMediaStore(pool),
		Migrator: migrator,
		Ping:     pool.Ping,
		Close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}
