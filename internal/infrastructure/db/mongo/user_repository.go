package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

const collectionUsers = "users"

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type mediaDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Collection  string             `bson:"collection"`
	FileName    string             `bson:"file_name"`
	ContentType string             `bson:"content_type"`
	Size        int64              `bson:"size"`
}

type userDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	Email           string             `bson:"email"`
	Phone           string             `bson:"phone,omitempty"`
	PasswordHash    string             `bson:"password_hash,omitempty"`
	Roles           []string           `bson:"roles"`
	Blocked         bool               `bson:"blocked"`
	Avatar          *mediaDocument     `bson:"avatar,omitempty"`
	EmailVerifiedAt *time.Time         `bson:"email_verified_at,omitempty"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func toUserDocument(u *domain.User) userDocument {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.String())
	}
	return userDocument{
		Name:            u.Name,
		Email:           u.Email,
		Phone:           u.Phone,
		PasswordHash:    u.PasswordHash,
		Roles:           roles,
		Blocked:         u.Blocked,
		Avatar:          toMediaDocument(u.Avatar),
		EmailVerifiedAt: u.EmailVerifiedAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (d userDocument) toDomain() *domain.User {
	roles := make([]domain.Role, 0, len(d.Roles))
	for _, r := range d.Roles {
		roles = append(roles, domain.Role(r))
	}
	return &domain.User{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		Email:           d.Email,
		Phone:           d.Phone,
		PasswordHash:    d.PasswordHash,
		Roles:           roles,
		Blocked:         d.Blocked,
		Avatar:          d.Avatar.toDomain(),
		EmailVerifiedAt: d.EmailVerifiedAt,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

func toMediaDocument(m *domain.Media) *mediaDocument {
	if m == nil {
		return nil
	}
	id, _ := primitive.ObjectIDFromHex(m.ID)
	return &mediaDocument{
		ID:          id,
		Collection:  m.Collection,
		FileName:    m.FileName,
		ContentType: m.ContentType,
		Size:        m.Size,
	}
}

func (m *mediaDocument) toDomain() *domain.Media {
	if m == nil {
		return nil
	}
	return &domain.Media{
		ID:          m.ID.Hex(),
		Collection:  m.Collection,
		FileName:    m.FileName,
		ContentType: m.ContentType,
		Size:        m.Size,
	}
}

// Create inserts a new user document and sets user.ID.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, toUserDocument(user))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("insert user: unexpected id type %T", res.InsertedID)
	}
	user.ID = oid.Hex()
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string, visibility domain.Visibility) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	filter := bson.M{"_id": oid}
	if visibility == domain.HideBlocked {
		filter["blocked"] = bson.M{"$ne": true}
	}
	return r.findOne(ctx, filter)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// List returns one page of users matching q, newest first, plus the total count.
func (r *UserRepository) List(ctx context.Context, q ports.ListUsersQuery) ([]*domain.User, int64, error) {
	filter, ok := buildListFilter(q)
	if !ok {
		return []*domain.User{}, 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(q.Offset())).
		SetLimit(int64(q.Limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}

	users := make([]*domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return users, total, nil
}

// buildListFilter translates q into a users filter. It reports false when q
// can match nothing (an empty id restriction).
func buildListFilter(q ports.ListUsersQuery) (bson.M, bool) {
	filter := bson.M{}

	if q.Visibility == domain.HideBlocked {
		filter["blocked"] = bson.M{"$ne": true}
	}

	idCond := bson.M{}
	if q.RestrictIDs {
		ids := toObjectIDs(q.OnlyIDs)
		if len(ids) == 0 {
			return nil, false
		}
		idCond["$in"] = ids
	}
	if ids := toObjectIDs(q.ExcludeIDs); len(ids) > 0 {
		idCond["$nin"] = ids
	}
	if len(idCond) > 0 {
		filter["_id"] = idCond
	}

	roleCond := bson.M{}
	if len(q.ExcludeRoles) > 0 {
		names := make([]string, 0, len(q.ExcludeRoles))
		for _, r := range q.ExcludeRoles {
			names = append(names, r.String())
		}
		roleCond["$nin"] = names
	}
	if q.Filter.Role != "" {
		roleCond["$all"] = []string{q.Filter.Role.String()}
	}
	if len(roleCond) > 0 {
		filter["roles"] = roleCond
	}

	if q.Filter.Email != "" {
		filter["email"] = q.Filter.Email
	}
	if q.Filter.Name != "" {
		filter["name"] = containsPattern(q.Filter.Name)
	}
	if q.Filter.Search != "" {
		pattern := containsPattern(q.Filter.Search)
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"email": pattern},
		}
	}

	return filter, true
}

func containsPattern(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// toObjectIDs converts hex ids, dropping any that are not valid ObjectIDs.
func toObjectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		out = append(out, oid)
	}
	return out
}

func (r *UserRepository) SetAvatar(ctx context.Context, id string, avatar *domain.Media) error {
	return r.update(ctx, id, bson.M{"avatar": toMediaDocument(avatar)})
}

func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string, verifiedAt time.Time) error {
	return r.update(ctx, id, bson.M{
		"password_hash":     passwordHash,
		"email_verified_at": verifiedAt,
	})
}

func (r *UserRepository) SetBlocked(ctx context.Context, id string, blocked bool) error {
	return r.update(ctx, id, bson.M{"blocked": blocked})
}

func (r *UserRepository) update(ctx context.Context, id string, set bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set["updated_at"] = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
