package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spotevents/spot/internal/persistence"
)

const userColumns = `id, name, email, role, is_premium, interests, lat, lng, image_url,
	google_id, github_id, password_hash, refresh_token_hash, created_at, updated_at`

// UserRepository implements persistence.UserRepository.
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a user repository over pool.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateUser inserts the account. Duplicate email, name or provider IDs
// report persistence.ErrDuplicate.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return fmt.Errorf("sqlite: user id is required")
	}
	interests, err := encodeStrings(user.Interests)
	if err != nil {
		return err
	}
	lat, lng := geoColumns(user.Location)

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.Name, normalizeEmail(user.Email), user.Role, user.IsPremium, interests,
			lat, lng, user.ImageURL, nullString(user.GoogleID), nullString(user.GithubID),
			user.PasswordHash, user.RefreshTokenHash, toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		for i, eventID := range user.Bookmarks {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO user_bookmarks (user_id, event_id, created_at) VALUES (?, ?, ?)`,
				user.ID, eventID, toMillis(user.CreatedAt)+int64(i)); err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// GetUser loads an account with its bookmarks.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetUserByEmail matches the lower-cased address.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.getBy(ctx, "email", normalizeEmail(email))
}

// GetUserByName matches the display name exactly.
func (r *UserRepository) GetUserByName(ctx context.Context, name string) (persistence.User, error) {
	return r.getBy(ctx, "name", name)
}

// GetUserByProvider looks up a linked social identity.
func (r *UserRepository) GetUserByProvider(ctx context.Context, provider, providerID string) (persistence.User, error) {
	switch provider {
	case "google":
		return r.getBy(ctx, "google_id", providerID)
	case "github":
		return r.getBy(ctx, "github_id", providerID)
	default:
		return persistence.User{}, persistence.ErrNotFound
	}
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (persistence.User, error) {
	if value == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	user, err := scanUser(row)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	if user.Bookmarks, err = r.bookmarks(ctx, user.ID); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func (r *UserRepository) bookmarks(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.helper.Query(ctx,
		`SELECT event_id FROM user_bookmarks WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateProfile writes the editable columns.
func (r *UserRepository) UpdateProfile(ctx context.Context, user persistence.User) error {
	interests, err := encodeStrings(user.Interests)
	if err != nil {
		return err
	}
	lat, lng := geoColumns(user.Location)

	n, err := r.helper.ExecAffected(ctx, `
		UPDATE users
		SET name = ?, email = ?, is_premium = ?, interests = ?, lat = ?, lng = ?, image_url = ?,
			google_id = ?, github_id = ?, updated_at = ?
		WHERE id = ?`,
		user.Name, normalizeEmail(user.Email), user.IsPremium, interests, lat, lng, user.ImageURL,
		nullString(user.GoogleID), nullString(user.GithubID), toMillis(user.UpdatedAt), user.ID,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new hash and revokes the refresh token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	n, err := r.helper.ExecAffected(ctx,
		`UPDATE users SET password_hash = ?, refresh_token_hash = '', updated_at = ? WHERE id = ?`,
		passwordHash, toMillis(updatedAt), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// SetRefreshTokenHash replaces the stored refresh token digest.
func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	n, err := r.helper.ExecAffected(ctx, `UPDATE users SET refresh_token_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ClearRefreshTokenByHash revokes whichever account holds hash.
func (r *UserRepository) ClearRefreshTokenByHash(ctx context.Context, hash string) error {
	if hash == "" {
		return persistence.ErrNotFound
	}
	n, err := r.helper.ExecAffected(ctx, `UPDATE users SET refresh_token_hash = '' WHERE refresh_token_hash = ?`, hash)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// UpdateRole changes the role only while it still equals from.
func (r *UserRepository) UpdateRole(ctx context.Context, id, from, to string, updatedAt time.Time) error {
	n, err := r.helper.ExecAffected(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ? AND role = ?`,
		to, toMillis(updatedAt), id, from)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.getBy(ctx, "id", id); err != nil {
		return err
	}
	return persistence.ErrConflict
}

// AddBookmark records the event once; repeated calls are no-ops.
func (r *UserRepository) AddBookmark(ctx context.Context, userID, eventID string) error {
	_, err := r.helper.Exec(ctx,
		`INSERT OR IGNORE INTO user_bookmarks (user_id, event_id, created_at) VALUES (?, ?, ?)`,
		userID, eventID, toMillis(time.Now()))
	return err
}

// RemoveBookmark deletes the bookmark if present.
func (r *UserRepository) RemoveBookmark(ctx context.Context, userID, eventID string) error {
	_, err := r.helper.Exec(ctx, `DELETE FROM user_bookmarks WHERE user_id = ? AND event_id = ?`, userID, eventID)
	return err
}

// ListUsers pages through accounts, newest first.
func (r *UserRepository) ListUsers(ctx context.Context, offset, limit int) ([]persistence.User, int64, error) {
	var total int64
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}

	rows, err := r.helper.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, r.mapper.MapError(err)
	}
	users := []persistence.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		users = append(users, user)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range users {
		if users[i].Bookmarks, err = r.bookmarks(ctx, users[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		interests            string
		lat, lng             sql.NullFloat64
		googleID, githubID   sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.IsPremium, &interests,
		&lat, &lng, &user.ImageURL, &googleID, &githubID, &user.PasswordHash, &user.RefreshTokenHash,
		&createdAt, &updatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	if user.Interests, err = decodeStrings(interests); err != nil {
		return persistence.User{}, err
	}
	user.Location = geoPoint(lat, lng)
	user.GoogleID = googleID.String
	user.GithubID = githubID.String
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode list: %w", err)
	}
	return string(b), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("sqlite: decode list: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}
