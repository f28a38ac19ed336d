// Package auth issues and verifies the HS256 JSON Web Tokens used for access
// and refresh sessions.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for malformed, mis-signed or wrongly typed tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrExpiredToken is returned when the token lifetime has passed.
	ErrExpiredToken = errors.New("auth: token expired")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Config holds the signing secrets and lifetimes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Claims is the payload of both token kinds. Role is only set on access tokens.
type Claims struct {
	Role string `json:"role,omitempty"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager signs and parses tokens.
type TokenManager struct {
	config Config
	now    func() time.Time
}

// NewTokenManager validates config and returns a manager. now defaults to time.Now.
func NewTokenManager(config Config, now func() time.Time) (*TokenManager, error) {
	if len(config.AccessSecret) == 0 || len(config.RefreshSecret) == 0 {
		return nil, errors.New("auth: access and refresh secrets are required")
	}
	if string(config.AccessSecret) == string(config.RefreshSecret) {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if config.AccessTTL <= 0 {
		config.AccessTTL = 15 * time.Minute
	}
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "spot"
	}
	if now == nil {
		now = time.Now
	}
	return &TokenManager{config: config, now: now}, nil
}

// IssueAccessToken returns a short-lived token carrying the user's role.
func (m *TokenManager) IssueAccessToken(userID, role string) (string, error) {
	return m.sign(userID, role, tokenTypeAccess, m.config.AccessTTL, m.config.AccessSecret)
}

// IssueRefreshToken returns a long-lived token signed with the refresh secret.
func (m *TokenManager) IssueRefreshToken(userID string) (string, error) {
	return m.sign(userID, "", tokenTypeRefresh, m.config.RefreshTTL, m.config.RefreshSecret)
}

// VerifyAccessToken returns the subject and role of a valid access token.
func (m *TokenManager) VerifyAccessToken(token string) (userID, role string, err error) {
	claims, err := m.parse(token, tokenTypeAccess, m.config.AccessSecret)
	if err != nil {
		return "", "", err
	}
	return claims.Subject, claims.Role, nil
}

// VerifyRefreshToken returns the subject of a valid refresh token.
func (m *TokenManager) VerifyRefreshToken(token string) (string, error) {
	claims, err := m.parse(token, tokenTypeRefresh, m.config.RefreshSecret)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// RefreshTTL reports the refresh token lifetime, used for the cookie Max-Age.
func (m *TokenManager) RefreshTTL() time.Duration {
	return m.config.RefreshTTL
}

func (m *TokenManager) sign(userID, role, typ string, ttl time.Duration, secret []byte) (string, error) {
	if userID == "" {
		return "", errors.New("auth: subject is required")
	}
	now := m.now()
	claims := Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) parse(token, typ string, secret []byte) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpiredToken
	case err != nil:
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case !parsed.Valid || claims.Type != typ || claims.Subject == "":
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
