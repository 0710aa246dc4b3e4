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

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

const collectionUsers = "users"

// sortFields maps public sort keys to document fields.
var sortFields = map[string]string{
	ports.SortByCreatedAt: "created_at",
	ports.SortByEmail:     "email",
	ports.SortByRole:      "role",
	ports.SortByStatus:    "status",
}

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

var _ ports.UserRepository = (*UserRepository)(nil)

type userDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	DisplayName  string    `bson:"display_name"`
	Role         string    `bson:"role"`
	Status       string    `bson:"status"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toUserDocument(u *domain.User) userDocument {
	return userDocument{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		DisplayName:  u.DisplayName,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func (d userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		DisplayName:  d.DisplayName,
		Role:         domain.Role(d.Role),
		Status:       domain.UserStatus(d.Status),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// Create inserts a new user. The unique email index turns a concurrent
// duplicate signup into domain.ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, toUserDocument(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return wrapErr("insert user", err)
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, wrapErr("find user", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, displayName string, at time.Time) error {
	return r.updateFields(ctx, "update profile", bson.M{"_id": id}, bson.M{"display_name": displayName}, at)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return r.updateFields(ctx, "update password", bson.M{"_id": id}, bson.M{"password_hash": hash}, at)
}

// UpdateRole only matches while the stored role is still from.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, from, to domain.Role, at time.Time) error {
	filter := bson.M{"_id": id, "role": string(from)}
	return r.updateFields(ctx, "update role", filter, bson.M{"role": string(to)}, at)
}

// UpdateStatus only matches while the stored status is still from.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, from, to domain.UserStatus, at time.Time) error {
	filter := bson.M{"_id": id, "status": string(from)}
	return r.updateFields(ctx, "update status", filter, bson.M{"status": string(to)}, at)
}

// updateFields sets only the given fields. updated_at goes through $max so
// it never moves backwards. When a guarded filter misses, the user is looked
// up again to tell a lost race (ErrNoChange) from a missing user.
func (r *UserRepository) updateFields(ctx context.Context, op string, filter, set bson.M, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		"$set": set,
		"$max": bson.M{"updated_at": at.UTC()},
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if len(filter) == 1 {
		return domain.ErrUserNotFound
	}

	n, err := r.col.CountDocuments(ctx, bson.M{"_id": filter["_id"]})
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return fmt.Errorf("%w: %s: user was modified concurrently", domain.ErrNoChange, op)
}

func (r *UserRepository) List(ctx context.Context, f ports.UserFilter) ([]*domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := userFilter(f)

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrapErr("count users", err)
	}

	field, ok := sortFields[f.SortBy]
	if !ok {
		field = sortFields[ports.SortByCreatedAt]
	}
	dir := 1
	if f.SortDesc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, wrapErr("list users", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, wrapErr("decode users", err)
	}

	users := make([]*domain.User, len(docs))
	for i, d := range docs {
		users[i] = d.toDomain()
	}
	return users, total, nil
}

func (r *UserRepository) Count(ctx context.Context, f ports.UserFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, userFilter(f))
	if err != nil {
		return 0, wrapErr("count users", err)
	}
	return n, nil
}

func userFilter(f ports.UserFilter) bson.M {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = string(f.Role)
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if !f.CreatedAfter.IsZero() {
		filter["created_at"] = bson.M{"$gte": f.CreatedAfter.UTC()}
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"email": pattern},
			bson.M{"display_name": pattern},
		}
	}
	return filter
}

// EnsureIndexes creates the unique email index and the listing indexes.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return wrapErr("create user indexes", err)
	}
	return nil
}
