package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spotevents/spot/internal/persistence"
)

// UserRepository stores accounts in the users collection. Bookmarks live in
// an array on the account document.
type UserRepository struct {
	col *mongo.Collection
}

// NewUserRepository creates a repository over db.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(usersCollection)}
}

// CreateUser inserts a new account.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	_, err := r.col.InsertOne(ctx, toUserDoc(user))
	return mapError(err)
}

// GetUser loads an account by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetUserByEmail loads an account by its normalised email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

// GetUserByName loads an account by its unique name.
func (r *UserRepository) GetUserByName(ctx context.Context, name string) (persistence.User, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

// GetUserByProvider loads the account linked to an OAuth identity.
func (r *UserRepository) GetUserByProvider(ctx context.Context, provider, providerID string) (persistence.User, error) {
	field, ok := providerField(provider)
	if !ok || providerID == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.findOne(ctx, bson.M{field: providerID})
}

func providerField(provider string) (string, bool) {
	switch provider {
	case "google":
		return "google_id", true
	case "github":
		return "github_id", true
	}
	return "", false
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (persistence.User, error) {
	var doc userDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return persistence.User{}, mapError(err)
	}
	return doc.model(), nil
}

// UpdateProfile writes the editable profile fields. Empty provider IDs are
// unset so the sparse unique indexes keep ignoring them.
func (r *UserRepository) UpdateProfile(ctx context.Context, user persistence.User) error {
	set := bson.M{
		"name":       user.Name,
		"email":      normalizeEmail(user.Email),
		"is_premium": user.IsPremium,
		"interests":  nonNil(user.Interests),
		"location":   toGeoDoc(user.Location),
		"image_url":  user.ImageURL,
		"updated_at": user.UpdatedAt.UTC(),
	}
	unset := bson.M{}
	for field, value := range map[string]string{"google_id": user.GoogleID, "github_id": user.GithubID} {
		if value == "" {
			unset[field] = ""
		} else {
			set[field] = value
		}
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return r.updateExisting(ctx, user.ID, update)
}

// UpdatePassword stores a new hash and revokes the refresh token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return r.updateExisting(ctx, id, bson.M{"$set": bson.M{
		"password_hash":      passwordHash,
		"refresh_token_hash": "",
		"updated_at":         updatedAt.UTC(),
	}})
}

// SetRefreshTokenHash replaces the stored refresh token hash.
func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	return r.updateExisting(ctx, id, bson.M{"$set": bson.M{"refresh_token_hash": hash}})
}

// ClearRefreshTokenByHash revokes whichever account holds hash.
func (r *UserRepository) ClearRefreshTokenByHash(ctx context.Context, hash string) error {
	if hash == "" {
		return persistence.ErrNotFound
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"refresh_token_hash": hash}, bson.M{"$set": bson.M{"refresh_token_hash": ""}})
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// UpdateRole changes the role only while it still equals from.
func (r *UserRepository) UpdateRole(ctx context.Context, id, from, to string, updatedAt time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "role": from},
		bson.M{"$set": bson.M{"role": to, "updated_at": updatedAt.UTC()}},
	)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return persistence.ErrConflict
}

// AddBookmark records the event once; repeated calls are no-ops.
func (r *UserRepository) AddBookmark(ctx context.Context, userID, eventID string) error {
	return r.updateExisting(ctx, userID, bson.M{"$addToSet": bson.M{"bookmarks": eventID}})
}

// RemoveBookmark deletes the bookmark if present.
func (r *UserRepository) RemoveBookmark(ctx context.Context, userID, eventID string) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$pull": bson.M{"bookmarks": eventID}})
	return mapError(err)
}

// ListUsers pages through accounts, newest first.
func (r *UserRepository) ListUsers(ctx context.Context, offset, limit int) ([]persistence.User, int64, error) {
	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, mapError(err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	docs, err := findAll[userDoc](ctx, r.col, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	users := make([]persistence.User, len(docs))
	for i, doc := range docs {
		users[i] = doc.model()
	}
	return users, total, nil
}

func (r *UserRepository) updateExisting(ctx context.Context, id string, update bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, mapError(err)
	}
	defer cur.Close(ctx)

	var out []T
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}
