package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

const (
	pendingUserTTL = 15 * time.Minute
	otpTTL         = 10 * time.Minute
)

// TokenIssuer signs and verifies the access/refresh token pair.
type TokenIssuer interface {
	IssueAccessToken(userID, role string) (string, error)
	IssueRefreshToken(userID string) (string, error)
	VerifyRefreshToken(token string) (string, error)
}

// Mailer delivers one-time codes.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, purpose OTPPurpose) error
}

// ImageStore uploads and removes images.
type ImageStore interface {
	Upload(ctx context.Context, upload Upload) (Image, error)
	Delete(ctx context.Context, publicID string) error
}

// IdentityServiceDeps wires the collaborators of the identity service.
type IdentityServiceDeps struct {
	Users        UserRepository
	PendingUsers PendingUserRepository
	OTPs         OTPRepository
	Events       EventRepository
	Passwords    PasswordHasher
	Codes        CodeHasher
	Tokens       TokenIssuer
	Mailer       Mailer
	Images       ImageStore
	GenerateOTP  func() (string, error)
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// IdentityService coordinates signup, login, token refresh and profile flows.
type IdentityService struct {
	users       UserRepository
	pending     PendingUserRepository
	otps        OTPRepository
	events      EventRepository
	passwords   PasswordHasher
	codes       CodeHasher
	tokens      TokenIssuer
	mailer      Mailer
	images      ImageStore
	generateOTP func() (string, error)
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewIdentityService constructs an IdentityService with the provided dependencies.
func NewIdentityService(deps IdentityServiceDeps) *IdentityService {
	if deps.Passwords == nil {
		deps.Passwords = NewArgon2idHasher(Argon2idParams{})
	}
	if deps.Codes == nil {
		deps.Codes = BcryptCodeHasher{}
	}
	if deps.GenerateOTP == nil {
		deps.GenerateOTP = GenerateOTP
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &IdentityService{
		users:       deps.Users,
		pending:     deps.PendingUsers,
		otps:        deps.OTPs,
		events:      deps.Events,
		passwords:   deps.Passwords,
		codes:       deps.Codes,
		tokens:      deps.Tokens,
		mailer:      deps.Mailer,
		images:      deps.Images,
		generateOTP: deps.GenerateOTP,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *IdentityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "IdentityService", operation, attrs...)
}

func (s *IdentityService) ready() error {
	if s == nil {
		return fmt.Errorf("IdentityService is nil")
	}
	if s.users == nil || s.tokens == nil {
		return fmt.Errorf("identity service not configured")
	}
	return nil
}

// Register stages a new account and emails a signup code. The account is only created
// once the code is verified.
func (s *IdentityService) Register(ctx context.Context, params RegisterParams) (err error) {
	if err = s.ready(); err != nil {
		return err
	}
	if s.pending == nil || s.otps == nil {
		return fmt.Errorf("signup storage not configured")
	}

	params.Name = strings.TrimSpace(params.Name)
	params.Email = normalizeEmail(params.Email)
	if params.Role == "" {
		params.Role = RoleUser
	}
	params.Interests = normalizeInterests(params.Interests)

	logger := s.loggerWith(ctx, "Register", "email", params.Email, "role", params.Role)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "registration staged")
	}()

	if vErr := validateStruct(params); vErr.HasErrors() {
		err = vErr
		return
	}

	if _, lookupErr := s.users.GetCredentialsByEmail(ctx, params.Email); lookupErr == nil {
		err = ErrAlreadyExists
		return
	} else if !errors.Is(lookupErr, ErrNotFound) {
		err = lookupErr
		return
	}

	if err = s.checkNameFree(ctx, params.Name); err != nil {
		return
	}

	var hash string
	hash, err = s.passwords.Hash(params.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	var image Image
	if params.Image != nil {
		image, err = s.upload(ctx, *params.Image)
		if err != nil {
			return
		}
	}

	now := s.now()
	err = s.pending.UpsertPendingUser(ctx, PendingUser{
		Email:        params.Email,
		Name:         params.Name,
		PasswordHash: hash,
		Role:         params.Role,
		Interests:    params.Interests,
		ImageURL:     image.URL,
		CreatedAt:    now,
		ExpiresAt:    now.Add(pendingUserTTL),
	})
	if err != nil {
		return
	}

	err = s.issueOTP(ctx, params.Email, OTPPurposeSignup)
	return
}

// ResendOTP replaces the outstanding code for purpose and emails a new one.
func (s *IdentityService) ResendOTP(ctx context.Context, email string, purpose OTPPurpose) (err error) {
	if err = s.ready(); err != nil {
		return err
	}
	email = normalizeEmail(email)

	logger := s.loggerWith(ctx, "ResendOTP", "email", email, "purpose", purpose)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "otp resend failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "otp resent")
	}()

	if email == "" {
		err = &ValidationError{FieldErrors: map[string]string{"email": "email is required"}}
		return
	}

	switch purpose {
	case OTPPurposeSignup:
		var pending PendingUser
		pending, err = s.pending.GetPendingUser(ctx, email)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				err = ErrSessionExpired
			}
			return
		}
		if !pending.ExpiresAt.After(s.now()) {
			err = ErrSessionExpired
			return
		}
		err = s.issueOTP(ctx, email, OTPPurposeSignup)
	case OTPPurposeForgotPassword:
		err = s.requestPasswordReset(ctx, email)
	default:
		err = &ValidationError{FieldErrors: map[string]string{"purpose": "purpose must be one of: signup, forgot-password"}}
	}
	return
}

// VerifySignupOTP confirms a pending registration, creates the account and signs it in.
func (s *IdentityService) VerifySignupOTP(ctx context.Context, email, code string) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return result, err
	}
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)

	logger := s.loggerWith(ctx, "VerifySignupOTP", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "signup verification failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "account created")
	}()

	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	}
	if code == "" {
		vErr.add("otp", "otp is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var otp OTP
	otp, err = s.checkOTP(ctx, email, code, OTPPurposeSignup)
	if err != nil {
		return
	}

	var pending PendingUser
	pending, err = s.pending.GetPendingUser(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrSessionExpired
		}
		return
	}
	if !pending.ExpiresAt.After(s.now()) {
		err = ErrSessionExpired
		return
	}

	if _, lookupErr := s.users.GetCredentialsByEmail(ctx, email); lookupErr == nil {
		s.discardSignup(ctx, logger, email)
		err = ErrAlreadyExists
		return
	} else if !errors.Is(lookupErr, ErrNotFound) {
		err = lookupErr
		return
	}

	// The name was free at registration but someone may have claimed it since.
	if err = s.checkNameFree(ctx, pending.Name); err != nil {
		return
	}

	if err = s.otps.ConsumeOTP(ctx, otp.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrOTPInvalid
		}
		return
	}

	now := s.now()
	var user User
	user, err = s.users.CreateUser(ctx, UserCredentials{
		User: User{
			ID:          s.idGenerator(),
			Name:        pending.Name,
			Email:       email,
			Role:        pending.Role,
			Interests:   pending.Interests,
			ImageURL:    pending.ImageURL,
			HasPassword: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: pending.PasswordHash,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			if nameErr := s.checkNameFree(ctx, pending.Name); nameErr != nil {
				err = nameErr
			}
		}
		return
	}

	var tokens AuthTokens
	tokens, err = s.startSession(ctx, user)
	if err != nil {
		return
	}

	if delErr := s.pending.DeletePendingUser(ctx, email); delErr != nil && !errors.Is(delErr, ErrNotFound) {
		logger.WarnContext(ctx, "failed to remove pending registration", "error", delErr)
	}

	result = AuthResult{User: user, Tokens: tokens}
	return
}

// checkNameFree returns a name ValidationError when an account already uses name.
func (s *IdentityService) checkNameFree(ctx context.Context, name string) error {
	_, err := s.users.GetUserByName(ctx, name)
	switch {
	case err == nil:
		return &ValidationError{FieldErrors: map[string]string{"name": "name is already taken"}}
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return err
	}
}

// Login verifies a password and issues a new token pair, replacing any stored refresh token.
func (s *IdentityService) Login(ctx context.Context, email, password string) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return result, err
	}
	email = normalizeEmail(email)

	logger := s.loggerWith(ctx, "Login", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "login succeeded")
	}()

	if email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.users.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if creds.PasswordHash == "" {
		err = ErrInvalidCredentials
		return
	}
	if verifyErr := s.passwords.Verify(creds.PasswordHash, password); verifyErr != nil {
		err = ErrInvalidCredentials
		return
	}

	var tokens AuthTokens
	tokens, err = s.startSession(ctx, creds.User)
	if err != nil {
		return
	}
	result = AuthResult{User: creds.User, Tokens: tokens}
	return
}

// RefreshAccessToken exchanges a valid stored refresh token for a new access token.
func (s *IdentityService) RefreshAccessToken(ctx context.Context, refreshToken string) (accessToken string, err error) {
	if err = s.ready(); err != nil {
		return "", err
	}
	refreshToken = strings.TrimSpace(refreshToken)

	logger := s.loggerWith(ctx, "RefreshAccessToken", "token_provided", refreshToken != "")
	var userID string
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "token refresh failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", userID).InfoContext(ctx, "access token refreshed")
	}()

	if refreshToken == "" {
		err = ErrUnauthenticated
		return
	}

	userID, err = s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		return
	}

	var creds UserCredentials
	creds, err = s.users.GetCredentials(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if creds.RefreshTokenHash == "" || creds.RefreshTokenHash != HashToken(refreshToken) {
		err = ErrInvalidCredentials
		return
	}

	accessToken, err = s.tokens.IssueAccessToken(creds.User.ID, string(creds.User.Role))
	return
}

// Logout forgets the stored refresh token, by principal when authenticated and by token otherwise.
func (s *IdentityService) Logout(ctx context.Context, principal *Principal, refreshToken string) error {
	if err := s.ready(); err != nil {
		return err
	}
	refreshToken = strings.TrimSpace(refreshToken)
	logger := s.loggerWith(ctx, "Logout", "authenticated", principal != nil, "token_provided", refreshToken != "")

	var err error
	switch {
	case principal != nil && principal.UserID != "":
		err = s.users.SetRefreshTokenHash(ctx, principal.UserID, "")
	case refreshToken != "":
		err = s.users.ClearRefreshTokenByHash(ctx, HashToken(refreshToken))
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.ErrorContext(ctx, "logout failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "logged out")
	return nil
}

// ForgotPassword emails a reset code when a password account exists. Unknown emails
// succeed silently so the endpoint does not reveal which addresses are registered.
func (s *IdentityService) ForgotPassword(ctx context.Context, email string) (err error) {
	if err = s.ready(); err != nil {
		return err
	}
	email = normalizeEmail(email)

	logger := s.loggerWith(ctx, "ForgotPassword", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "password reset request failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password reset requested")
	}()

	if email == "" {
		err = &ValidationError{FieldErrors: map[string]string{"email": "email is required"}}
		return
	}
	err = s.requestPasswordReset(ctx, email)
	return
}

func (s *IdentityService) requestPasswordReset(ctx context.Context, email string) error {
	creds, err := s.users.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if creds.PasswordHash == "" {
		return ErrSocialAccount
	}
	return s.issueOTP(ctx, email, OTPPurposeForgotPassword)
}

// ResetPasswordParams carries a password reset confirmation.
type ResetPasswordParams struct {
	Email       string `field:"email" validate:"required,email"`
	OTP         string `field:"otp" validate:"required"`
	NewPassword string `field:"newPassword" validate:"required,min=6,max=128"`
}

// ResetPassword verifies a reset code, stores the new password and signs out every session.
func (s *IdentityService) ResetPassword(ctx context.Context, params ResetPasswordParams) (err error) {
	if err = s.ready(); err != nil {
		return err
	}
	params.Email = normalizeEmail(params.Email)
	params.OTP = strings.TrimSpace(params.OTP)

	logger := s.loggerWith(ctx, "ResetPassword", "email", params.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "password reset failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password reset")
	}()

	if vErr := validateStruct(params); vErr.HasErrors() {
		err = vErr
		return
	}

	var otp OTP
	otp, err = s.checkOTP(ctx, params.Email, params.OTP, OTPPurposeForgotPassword)
	if err != nil {
		return
	}

	var creds UserCredentials
	creds, err = s.users.GetCredentialsByEmail(ctx, params.Email)
	if err != nil {
		return
	}

	if err = s.otps.ConsumeOTP(ctx, otp.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrOTPInvalid
		}
		return
	}

	var hash string
	hash, err = s.passwords.Hash(params.NewPassword)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}
	err = s.users.UpdatePassword(ctx, creds.User.ID, hash, s.now())
	return
}

// Profile returns the caller's account.
func (s *IdentityService) Profile(ctx context.Context, principal Principal) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if principal.UserID == "" {
		return User{}, ErrUnauthenticated
	}
	return s.users.GetUser(ctx, principal.UserID)
}

// UpdateProfile changes the user-editable fields of the caller's account.
func (s *IdentityService) UpdateProfile(ctx context.Context, principal Principal, params UpdateProfileParams) (user User, err error) {
	if err = s.ready(); err != nil {
		return user, err
	}

	logger := s.loggerWith(ctx, "UpdateProfile", "user_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "profile update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile updated")
	}()

	if principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}

	user, err = s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		return
	}

	vErr := &ValidationError{}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		switch {
		case name == "":
			vErr.add("name", "name is required")
		case len(name) > 60:
			vErr.add("name", "name must be at most 60 characters")
		case name != user.Name:
			if _, lookupErr := s.users.GetUserByName(ctx, name); lookupErr == nil {
				vErr.add("name", "name is already taken")
			} else if !errors.Is(lookupErr, ErrNotFound) {
				err = lookupErr
				return
			}
		}
		user.Name = name
	}
	if params.Interests != nil {
		interests := normalizeInterests(params.Interests)
		if len(interests) > 20 {
			vErr.add("interests", "interests must contain at most 20 entries")
		}
		user.Interests = interests
	}
	if params.Location != nil {
		vErr.merge(validateGeoPoint("location", *params.Location))
		loc := *params.Location
		user.Location = &loc
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if params.Image != nil {
		var image Image
		image, err = s.upload(ctx, *params.Image)
		if err != nil {
			return
		}
		user.ImageURL = image.URL
	}

	user.UpdatedAt = s.now()
	user, err = s.users.UpdateUser(ctx, user)
	return
}

// BecomeOrganizer is the only role transition: a plain user upgrades to organizer.
// The returned access token carries the new role.
func (s *IdentityService) BecomeOrganizer(ctx context.Context, principal Principal) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return result, err
	}

	logger := s.loggerWith(ctx, "BecomeOrganizer", "user_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "role upgrade failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "role upgraded to organizer")
	}()

	if principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}

	if err = s.users.UpdateRole(ctx, principal.UserID, RoleUser, RoleOrganizer, s.now()); err != nil {
		if errors.Is(err, ErrConflict) {
			err = ErrRoleTransition
		}
		return
	}

	var user User
	user, err = s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		return
	}

	var access string
	access, err = s.tokens.IssueAccessToken(user.ID, string(user.Role))
	if err != nil {
		return
	}
	result = AuthResult{User: user, Tokens: AuthTokens{AccessToken: access}}
	return
}

// ToggleBookmark adds eventID to the caller's bookmarks, or removes it when already present.
// It reports whether the event is bookmarked afterwards.
func (s *IdentityService) ToggleBookmark(ctx context.Context, principal Principal, eventID string) (bookmarked bool, err error) {
	if err = s.ready(); err != nil {
		return false, err
	}
	eventID = strings.TrimSpace(eventID)

	logger := s.loggerWith(ctx, "ToggleBookmark", "user_id", principal.UserID, "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "bookmark toggle failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "bookmark toggled", "bookmarked", bookmarked)
	}()

	if principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}
	if eventID == "" {
		err = ErrNotFound
		return
	}

	var user User
	user, err = s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		return
	}

	for _, id := range user.Bookmarks {
		if id == eventID {
			err = s.users.RemoveBookmark(ctx, user.ID, eventID)
			return false, err
		}
	}

	if s.events != nil {
		if _, err = s.events.GetEvent(ctx, eventID); err != nil {
			return false, err
		}
	}
	if err = s.users.AddBookmark(ctx, user.ID, eventID); err != nil {
		return false, err
	}
	return true, nil
}

// SocialLogin signs in the account linked to an OAuth identity. It links the provider to an
// existing account with the same email, or creates a new user account.
func (s *IdentityService) SocialLogin(ctx context.Context, profile SocialProfile) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return result, err
	}
	profile.Email = normalizeEmail(profile.Email)
	profile.Name = strings.TrimSpace(profile.Name)

	logger := s.loggerWith(ctx, "SocialLogin", "provider", profile.Provider, "email", profile.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "social login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "social login succeeded")
	}()

	if profile.Provider != "google" && profile.Provider != "github" {
		err = &ValidationError{FieldErrors: map[string]string{"provider": "provider must be one of: google, github"}}
		return
	}
	if profile.ProviderID == "" {
		err = fmt.Errorf("%w: provider returned no account id", ErrInvalidCredentials)
		return
	}

	var user User
	user, err = s.users.GetUserByProvider(ctx, profile.Provider, profile.ProviderID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		user, err = s.linkOrCreateSocialUser(ctx, profile)
		if err != nil {
			return
		}
	default:
		return
	}

	var tokens AuthTokens
	tokens, err = s.startSession(ctx, user)
	if err != nil {
		return
	}
	result = AuthResult{User: user, Tokens: tokens}
	return
}

func (s *IdentityService) linkOrCreateSocialUser(ctx context.Context, profile SocialProfile) (User, error) {
	if profile.Email == "" {
		return User{}, &ValidationError{FieldErrors: map[string]string{"email": "provider did not share an email address"}}
	}

	creds, err := s.users.GetCredentialsByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		user := creds.User
		setProviderID(&user, profile)
		if user.ImageURL == "" {
			user.ImageURL = profile.AvatarURL
		}
		user.UpdatedAt = s.now()
		return s.users.UpdateUser(ctx, user)
	case !errors.Is(err, ErrNotFound):
		return User{}, err
	}

	name, err := s.uniqueName(ctx, profile)
	if err != nil {
		return User{}, err
	}

	now := s.now()
	user := User{
		ID:        s.idGenerator(),
		Name:      name,
		Email:     profile.Email,
		Role:      RoleUser,
		ImageURL:  profile.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	setProviderID(&user, profile)
	return s.users.CreateUser(ctx, UserCredentials{User: user})
}

func (s *IdentityService) uniqueName(ctx context.Context, profile SocialProfile) (string, error) {
	base := profile.Name
	if base == "" {
		base, _, _ = strings.Cut(profile.Email, "@")
	}
	base = strings.Join(strings.Fields(base), "")
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "user"
	}

	candidate := base
	for attempt := 0; attempt < 5; attempt++ {
		_, err := s.users.GetUserByName(ctx, candidate)
		if errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		suffix := s.idGenerator()
		if len(suffix) > 6 {
			suffix = suffix[:6]
		}
		candidate = fmt.Sprintf("%s_%s", base, suffix)
	}
	return "", fmt.Errorf("could not derive a unique name for %q: %w", base, ErrAlreadyExists)
}

func setProviderID(user *User, profile SocialProfile) {
	switch profile.Provider {
	case "google":
		user.GoogleID = profile.ProviderID
	case "github":
		user.GithubID = profile.ProviderID
	}
}

// startSession issues a token pair and stores the refresh token digest.
func (s *IdentityService) startSession(ctx context.Context, user User) (AuthTokens, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, string(user.Role))
	if err != nil {
		return AuthTokens{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return AuthTokens{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.users.SetRefreshTokenHash(ctx, user.ID, HashToken(refresh)); err != nil {
		return AuthTokens{}, err
	}
	return AuthTokens{AccessToken: access, RefreshToken: refresh}, nil
}

// issueOTP replaces any outstanding codes for the purpose and mails a fresh one.
func (s *IdentityService) issueOTP(ctx context.Context, email string, purpose OTPPurpose) error {
	if s.otps == nil || s.mailer == nil {
		return fmt.Errorf("otp delivery not configured")
	}
	if err := s.otps.DeleteOTPs(ctx, email, purpose); err != nil {
		return err
	}

	code, err := s.generateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := s.codes.Hash(code)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	now := s.now()
	if err := s.otps.CreateOTP(ctx, OTP{
		ID:        s.idGenerator(),
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(otpTTL),
	}); err != nil {
		return err
	}

	if err := s.mailer.SendOTP(ctx, email, code, purpose); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// checkOTP loads the newest live code for the purpose and compares it with code.
func (s *IdentityService) checkOTP(ctx context.Context, email, code string, purpose OTPPurpose) (OTP, error) {
	if s.otps == nil {
		return OTP{}, fmt.Errorf("otp storage not configured")
	}
	otp, err := s.otps.LatestOTP(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return OTP{}, ErrOTPExpired
		}
		return OTP{}, err
	}
	if !otp.ExpiresAt.After(s.now()) {
		return OTP{}, ErrOTPExpired
	}
	if err := s.codes.Compare(otp.CodeHash, code); err != nil {
		if errors.Is(err, ErrOTPInvalid) {
			return OTP{}, ErrOTPInvalid
		}
		return OTP{}, err
	}
	return otp, nil
}

func (s *IdentityService) discardSignup(ctx context.Context, logger *slog.Logger, email string) {
	if err := s.otps.DeleteOTPs(ctx, email, OTPPurposeSignup); err != nil {
		logger.WarnContext(ctx, "failed to remove signup codes", "error", err)
	}
	if err := s.pending.DeletePendingUser(ctx, email); err != nil && !errors.Is(err, ErrNotFound) {
		logger.WarnContext(ctx, "failed to remove pending registration", "error", err)
	}
}

func (s *IdentityService) upload(ctx context.Context, upload Upload) (Image, error) {
	if s.images == nil {
		return Image{}, ErrUploadsDisabled
	}
	image, err := s.images.Upload(ctx, upload)
	if err != nil {
		return Image{}, fmt.Errorf("upload image: %w", err)
	}
	return image, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeInterests(interests []string) []string {
	if interests == nil {
		return nil
	}
	out := make([]string, 0, len(interests))
	seen := make(map[string]struct{}, len(interests))
	for _, interest := range interests {
		trimmed := strings.TrimSpace(interest)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func validateGeoPoint(field string, point GeoPoint) *ValidationError {
	vErr := &ValidationError{}
	if math.IsNaN(point.Lat) || point.Lat < -90 || point.Lat > 90 {
		vErr.add(field+".lat", "lat must be between -90 and 90")
	}
	if math.IsNaN(point.Lng) || point.Lng < -180 || point.Lng > 180 {
		vErr.add(field+".lng", "lng must be between -180 and 180")
	}
	return vErr
}
