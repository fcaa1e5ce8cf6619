package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/protomind/user-service/internal/core/domain"
)

const collectionRoles = "roles"

type RoleRepository struct {
	col *mongo.Collection
}

func NewRoleRepository(db *mongo.Database) *RoleRepository {
	return &RoleRepository{col: db.Collection(collectionRoles)}
}

type roleDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Guard     string             `bson:"guard_name"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// Ensure upserts the (role, guard) record. Two racing upserts can both miss
// and collide on the unique index; the loser retries once and reads the
// winner's document.
func (r *RoleRepository) Ensure(ctx context.Context, role domain.Role, guard string) (*domain.RoleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rec, err := r.upsert(ctx, role, guard)
	if mongo.IsDuplicateKeyError(err) {
		rec, err = r.upsert(ctx, role, guard)
	}
	if err != nil {
		return nil, fmt.Errorf("ensure role %s: %w", role, err)
	}
	return rec, nil
}

func (r *RoleRepository) upsert(ctx context.Context, role domain.Role, guard string) (*domain.RoleRecord, error) {
	now := time.Now().UTC()
	filter := bson.M{"name": role.String(), "guard_name": guard}
	update := bson.M{"$setOnInsert": bson.M{
		"name":       role.String(),
		"guard_name": guard,
		"created_at": now,
		"updated_at": now,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc roleDocument
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return &domain.RoleRecord{
		ID:        doc.ID.Hex(),
		Name:      domain.Role(doc.Name),
		Guard:     doc.Guard,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, nil
}
