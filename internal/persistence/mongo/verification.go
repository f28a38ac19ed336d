package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spotevents/spot/internal/persistence"
)

// PendingUserRepository stores registrations keyed by email. A TTL index on
// expires_at removes abandoned ones.
type PendingUserRepository struct {
	col *mongo.Collection
}

// NewPendingUserRepository creates a repository over db.
func NewPendingUserRepository(db *mongo.Database) *PendingUserRepository {
	return &PendingUserRepository{col: db.Collection(pendingUsersCollection)}
}

// UpsertPendingUser creates or replaces the registration for an email.
func (r *PendingUserRepository) UpsertPendingUser(ctx context.Context, pending persistence.PendingUser) error {
	doc := pendingUserDoc{
		Email:        normalizeEmail(pending.Email),
		Name:         pending.Name,
		PasswordHash: pending.PasswordHash,
		Role:         pending.Role,
		Interests:    nonNil(pending.Interests),
		ImageURL:     pending.ImageURL,
		CreatedAt:    pending.CreatedAt.UTC(),
		ExpiresAt:    pending.ExpiresAt.UTC(),
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.Email}, doc, options.Replace().SetUpsert(true))
	return mapError(err)
}

// GetPendingUser loads the registration for an email.
func (r *PendingUserRepository) GetPendingUser(ctx context.Context, email string) (persistence.PendingUser, error) {
	var doc pendingUserDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": normalizeEmail(email)}).Decode(&doc); err != nil {
		return persistence.PendingUser{}, mapError(err)
	}
	return doc.model(), nil
}

// DeletePendingUser removes the registration if present.
func (r *PendingUserRepository) DeletePendingUser(ctx context.Context, email string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": normalizeEmail(email)})
	return mapError(err)
}

// OTPRepository stores hashed one-time codes.
type OTPRepository struct {
	col *mongo.Collection
}

// NewOTPRepository creates a repository over db.
func NewOTPRepository(db *mongo.Database) *OTPRepository {
	return &OTPRepository{col: db.Collection(otpsCollection)}
}

// CreateOTP stores a code.
func (r *OTPRepository) CreateOTP(ctx context.Context, otp persistence.OTP) error {
	_, err := r.col.InsertOne(ctx, otpDoc{
		ID:        otp.ID,
		Email:     normalizeEmail(otp.Email),
		Purpose:   otp.Purpose,
		CodeHash:  otp.CodeHash,
		CreatedAt: otp.CreatedAt.UTC(),
		ExpiresAt: otp.ExpiresAt.UTC(),
	})
	return mapError(err)
}

// LatestOTP returns the most recently issued code for email and purpose.
func (r *OTPRepository) LatestOTP(ctx context.Context, email, purpose string) (persistence.OTP, error) {
	var doc otpDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if err := r.col.FindOne(ctx, bson.M{"email": normalizeEmail(email), "purpose": purpose}, opts).Decode(&doc); err != nil {
		return persistence.OTP{}, mapError(err)
	}
	return persistence.OTP{
		ID:        doc.ID,
		Email:     doc.Email,
		Purpose:   doc.Purpose,
		CodeHash:  doc.CodeHash,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

// DeleteOTPs removes every code for email and purpose.
func (r *OTPRepository) DeleteOTPs(ctx context.Context, email, purpose string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"email": normalizeEmail(email), "purpose": purpose})
	return mapError(err)
}

// ConsumeOTP deletes a code. Only one caller can consume a given code.
func (r *OTPRepository) ConsumeOTP(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
