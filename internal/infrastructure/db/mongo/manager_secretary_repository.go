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

const collectionManagerSecretaries = "manager_secretaries"

type ManagerSecretaryRepository struct {
	col   *mongo.Collection
	users *mongo.Collection
}

func NewManagerSecretaryRepository(db *mongo.Database) *ManagerSecretaryRepository {
	return &ManagerSecretaryRepository{
		col:   db.Collection(collectionManagerSecretaries),
		users: db.Collection(collectionUsers),
	}
}

type managerSecretaryDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ManagerID   primitive.ObjectID `bson:"manager_id"`
	SecretaryID primitive.ObjectID `bson:"secretary_id"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (r *ManagerSecretaryRepository) Create(ctx context.Context, link *domain.ManagerSecretary) error {
	managerID, err := primitive.ObjectIDFromHex(link.ManagerID)
	if err != nil {
		return fmt.Errorf("manager id %q: %w", link.ManagerID, err)
	}
	secretaryID, err := primitive.ObjectIDFromHex(link.SecretaryID)
	if err != nil {
		return fmt.Errorf("secretary id %q: %w", link.SecretaryID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, managerSecretaryDocument{
		ManagerID:   managerID,
		SecretaryID: secretaryID,
		CreatedAt:   link.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAssociationExists
		}
		return fmt.Errorf("insert manager secretary: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		link.ID = oid.Hex()
	}
	return nil
}

func (r *ManagerSecretaryRepository) SecretaryIDs(ctx context.Context, managerID string, visibility domain.Visibility) ([]string, error) {
	oid, err := primitive.ObjectIDFromHex(managerID)
	if err != nil {
		return []string{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"manager_id": oid},
		options.Find().SetProjection(bson.M{"secretary_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("find secretaries: %w", err)
	}
	var links []managerSecretaryDocument
	if err := cur.All(ctx, &links); err != nil {
		return nil, fmt.Errorf("decode secretaries: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.SecretaryID)
	}
	if len(ids) == 0 || visibility == domain.IncludeBlocked {
		return hexIDs(ids), nil
	}

	// Drop blocked secretaries.
	cur, err = r.users.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "blocked": bson.M{"$ne": true}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("filter secretaries: %w", err)
	}
	var visible []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &visible); err != nil {
		return nil, fmt.Errorf("decode secretaries: %w", err)
	}

	out := make([]primitive.ObjectID, 0, len(visible))
	for _, v := range visible {
		out = append(out, v.ID)
	}
	return hexIDs(out), nil
}

func (r *ManagerSecretaryRepository) IsSecretaryOf(ctx context.Context, managerID, secretaryID string) (bool, error) {
	mid, err := primitive.ObjectIDFromHex(managerID)
	if err != nil {
		return false, nil
	}
	sid, err := primitive.ObjectIDFromHex(secretaryID)
	if err != nil {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{"manager_id": mid, "secretary_id": sid},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count manager secretary: %w", err)
	}
	return n > 0, nil
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}
