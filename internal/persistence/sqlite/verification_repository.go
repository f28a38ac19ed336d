package sqlite

import (
	"context"
	"time"

	"github.com/spotevents/spot/internal/persistence"
)

// PendingUserRepository implements persistence.PendingUserRepository.
type PendingUserRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewPendingUserRepository creates a pending registration repository.
func NewPendingUserRepository(pool *ConnectionPool) *PendingUserRepository {
	return &PendingUserRepository{helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// UpsertPendingUser replaces any earlier registration for the same email.
func (r *PendingUserRepository) UpsertPendingUser(ctx context.Context, pending persistence.PendingUser) error {
	interests, err := encodeStrings(pending.Interests)
	if err != nil {
		return err
	}
	_, err = r.helper.Exec(ctx, `
		INSERT INTO pending_users (email, name, password_hash, role, interests, image_url, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			password_hash = excluded.password_hash,
			role = excluded.role,
			interests = excluded.interests,
			image_url = excluded.image_url,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		normalizeEmail(pending.Email), pending.Name, pending.PasswordHash, pending.Role, interests,
		pending.ImageURL, toMillis(pending.CreatedAt), toMillis(pending.ExpiresAt),
	)
	return err
}

// GetPendingUser returns the registration for email, expired or not.
func (r *PendingUserRepository) GetPendingUser(ctx context.Context, email string) (persistence.PendingUser, error) {
	var (
		pending              persistence.PendingUser
		interests            string
		createdAt, expiresAt int64
	)
	err := r.helper.QueryRow(ctx, `
		SELECT email, name, password_hash, role, interests, image_url, created_at, expires_at
		FROM pending_users WHERE email = ?`, normalizeEmail(email),
	).Scan(&pending.Email, &pending.Name, &pending.PasswordHash, &pending.Role, &interests,
		&pending.ImageURL, &createdAt, &expiresAt)
	if err != nil {
		return persistence.PendingUser{}, r.mapper.MapError(err)
	}
	if pending.Interests, err = decodeStrings(interests); err != nil {
		return persistence.PendingUser{}, err
	}
	pending.CreatedAt = fromMillis(createdAt)
	pending.ExpiresAt = fromMillis(expiresAt)
	return pending, nil
}

// DeletePendingUser removes the registration; a missing row is not an error.
func (r *PendingUserRepository) DeletePendingUser(ctx context.Context, email string) error {
	_, err := r.helper.Exec(ctx, `DELETE FROM pending_users WHERE email = ?`, normalizeEmail(email))
	return err
}

// PurgeExpired drops registrations and codes whose expiry has passed. Document
// stores do this with TTL indexes.
func (r *PendingUserRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	pending, err := r.helper.ExecAffected(ctx, `DELETE FROM pending_users WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	codes, err := r.helper.ExecAffected(ctx, `DELETE FROM otps WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return pending + codes, nil
}

// OTPRepository implements persistence.OTPRepository.
type OTPRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewOTPRepository creates a one-time code repository.
func NewOTPRepository(pool *ConnectionPool) *OTPRepository {
	return &OTPRepository{helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// CreateOTP stores a hashed code.
func (r *OTPRepository) CreateOTP(ctx context.Context, otp persistence.OTP) error {
	_, err := r.helper.Exec(ctx, `
		INSERT INTO otps (id, email, purpose, code_hash, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		otp.ID, normalizeEmail(otp.Email), otp.Purpose, otp.CodeHash, toMillis(otp.CreatedAt), toMillis(otp.ExpiresAt),
	)
	return err
}

// LatestOTP returns the most recently issued code for the email and purpose.
func (r *OTPRepository) LatestOTP(ctx context.Context, email, purpose string) (persistence.OTP, error) {
	var (
		otp                  persistence.OTP
		createdAt, expiresAt int64
	)
	err := r.helper.QueryRow(ctx, `
		SELECT id, email, purpose, code_hash, created_at, expires_at
		FROM otps WHERE email = ? AND purpose = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, normalizeEmail(email), purpose,
	).Scan(&otp.ID, &otp.Email, &otp.Purpose, &otp.CodeHash, &createdAt, &expiresAt)
	if err != nil {
		return persistence.OTP{}, r.mapper.MapError(err)
	}
	otp.CreatedAt = fromMillis(createdAt)
	otp.ExpiresAt = fromMillis(expiresAt)
	return otp, nil
}

// DeleteOTPs removes every code for the email and purpose.
func (r *OTPRepository) DeleteOTPs(ctx context.Context, email, purpose string) error {
	_, err := r.helper.Exec(ctx, `DELETE FROM otps WHERE email = ? AND purpose = ?`, normalizeEmail(email), purpose)
	return err
}

// ConsumeOTP deletes one code. Only the caller whose delete removed the row
// succeeds; everyone else sees persistence.ErrNotFound.
func (r *OTPRepository) ConsumeOTP(ctx context.Context, id string) error {
	n, err := r.helper.ExecAffected(ctx, `DELETE FROM otps WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
