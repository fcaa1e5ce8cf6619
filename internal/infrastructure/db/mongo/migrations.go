package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/protomind/user-service/internal/core/ports"
)

const (
	collectionMigrations = "schema_migrations"
	collectionProtocols  = "protocols"
)

// Migration is a reversible schema change identified by a sortable version.
type Migration struct {
	Version string
	Up      func(ctx context.Context, db *mongo.Database) error
	Down    func(ctx context.Context, db *mongo.Database) error
}

// Migrations returns the registered migrations in apply order.
func Migrations() []Migration {
	return []Migration{
		{
			Version: "20240101000000_create_indexes",
			Up:      createIndexesUp,
			Down:    createIndexesDown,
		},
		{
			Version: "20240706175445_drop_final_transcript_from_protocols",
			Up: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(collectionProtocols).UpdateMany(ctx,
					bson.M{"final_transcript": bson.M{"$exists": true}},
					bson.M{"$unset": bson.M{"final_transcript": ""}})
				return err
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(collectionProtocols).UpdateMany(ctx,
					bson.M{"final_transcript": bson.M{"$exists": false}},
					bson.M{"$set": bson.M{"final_transcript": nil}})
				return err
			},
		},
	}
}

type indexSpec struct {
	collection string
	model      mongo.IndexModel
}

func baseIndexes() []indexSpec {
	return []indexSpec{
		{collectionUsers, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("users_email_unique").SetUnique(true),
		}},
		{collectionUsers, mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("users_created_at"),
		}},
		{collectionRoles, mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}, {Key: "guard_name", Value: 1}},
			Options: options.Index().SetName("roles_name_guard_unique").SetUnique(true),
		}},
		{collectionManagerSecretaries, mongo.IndexModel{
			Keys:    bson.D{{Key: "manager_id", Value: 1}, {Key: "secretary_id", Value: 1}},
			Options: options.Index().SetName("manager_secretaries_pair_unique").SetUnique(true),
		}},
	}
}

func createIndexesUp(ctx context.Context, db *mongo.Database) error {
	for _, idx := range baseIndexes() {
		if _, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.collection, err)
		}
	}
	return nil
}

func createIndexesDown(ctx context.Context, db *mongo.Database) error {
	for _, idx := range baseIndexes() {
		name := *idx.model.Options.Name
		if _, err := db.Collection(idx.collection).Indexes().DropOne(ctx, name); err != nil && !isIndexNotFound(err) {
			return fmt.Errorf("drop index %s: %w", name, err)
		}
	}
	return nil
}

func isIndexNotFound(err error) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && (ce.Code == 27 || ce.Code == 26)
}

type migrationRecord struct {
	Version   string    `bson:"_id"`
	AppliedAt time.Time `bson:"applied_at"`
}

// Migrator applies Migrations and records them in schema_migrations.
type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	logger     zerolog.Logger
}

var _ ports.Migrator = (*Migrator)(nil)

func NewMigrator(db *mongo.Database, logger zerolog.Logger) *Migrator {
	return newMigrator(db, Migrations(), logger)
}

func newMigrator(db *mongo.Database, migrations []Migration, logger zerolog.Logger) *Migrator {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Migrator{db: db, migrations: sorted, logger: logger}
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	cur, err := m.db.Collection(collectionMigrations).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	var records []migrationRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode schema_migrations: %w", err)
	}
	out := make(map[string]bool, len(records))
	for _, r := range records {
		out[r.Version] = true
	}
	return out, nil
}

// Up applies every pending migration in version order.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, mig := range pending(m.migrations, done) {
		if err := mig.Up(ctx, m.db); err != nil {
			return ran, fmt.Errorf("migration %s up: %w", mig.Version, err)
		}
		rec := migrationRecord{Version: mig.Version, AppliedAt: time.Now().UTC()}
		if _, err := m.db.Collection(collectionMigrations).InsertOne(ctx, rec); err != nil {
			return ran, fmt.Errorf("record migration %s: %w", mig.Version, err)
		}
		m.logger.Info().Str("version", mig.Version).Msg("migration applied")
		ran = append(ran, mig.Version)
	}
	return ran, nil
}

// Down reverts the latest steps applied migrations.
func (m *Migrator) Down(ctx context.Context, steps int) ([]string, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var reverted []string
	for _, mig := range rollback(m.migrations, done, steps) {
		if err := mig.Down(ctx, m.db); err != nil {
			return reverted, fmt.Errorf("migration %s down: %w", mig.Version, err)
		}
		if _, err := m.db.Collection(collectionMigrations).DeleteOne(ctx, bson.M{"_id": mig.Version}); err != nil {
			return reverted, fmt.Errorf("unrecord migration %s: %w", mig.Version, err)
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

func pending(all []Migration, done map[string]bool) []Migration {
	var out []Migration
	for _, mig := range all {
		if !done[mig.Version] {
			out = append(out, mig)
		}
	}
	return out
}

// rollback picks the newest applied migrations, newest first.
func rollback(all []Migration, done map[string]bool, steps int) []Migration {
	var out []Migration
	for i := len(all) - 1; i >= 0 && len(out) < steps; i-- {
		if done[all[i].Version] {
			out = append(out, all[i])
		}
	}
	return out
}
