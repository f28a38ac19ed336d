package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spotevents/spot/internal/application"
	"github.com/spotevents/spot/internal/oauth"
)

const (
	refreshCookieName = "refreshToken"
	stateCookieName   = "oauthState"
)

type identityService interface {
	Register(ctx context.Context, params application.RegisterParams) error
	ResendOTP(ctx context.Context, email string, purpose application.OTPPurpose) error
	VerifySignupOTP(ctx context.Context, email, code string) (application.AuthResult, error)
	Login(ctx context.Context, email, password string) (application.AuthResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, principal *application.Principal, refreshToken string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, params application.ResetPasswordParams) error
	Profile(ctx context.Context, principal application.Principal) (application.User, error)
	UpdateProfile(ctx context.Context, principal application.Principal, params application.UpdateProfileParams) (application.User, error)
	BecomeOrganizer(ctx context.Context, principal application.Principal) (application.AuthResult, error)
	ToggleBookmark(ctx context.Context, principal application.Principal, eventID string) (bool, error)
	SocialLogin(ctx context.Context, profile application.SocialProfile) (application.AuthResult, error)
}

type oauthProviders interface {
	Get(name string) (oauth.Provider, error)
}

// IdentityConfig controls cookies and OAuth redirects.
type IdentityConfig struct {
	SecureCookies bool
	RefreshTTL    time.Duration
	FrontendURL   string
}

type IdentityHandler struct {
	service   identityService
	providers oauthProviders
	config    IdentityConfig
	responder responder
	logger    *slog.Logger
}

func NewIdentityHandler(service identityService, providers oauthProviders, config IdentityConfig, logger *slog.Logger) *IdentityHandler {
	base := defaultLogger(logger)
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	return &IdentityHandler{service: service, providers: providers, config: config, responder: newResponder(base), logger: base}
}

func (h *IdentityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "IdentityHandler", operation, attrs...)
}

type registerRequest struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Role      string   `json:"role"`
	Interests []string `json:"interests"`
}

func (h *IdentityHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var params application.RegisterParams

	if isMultipart(r) {
		image, release, err := parseMultipart(w, r, "image")
		defer release()
		if err != nil {
			h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		form := newFormFields(r)
		params = application.RegisterParams{
			Name:      r.FormValue("name"),
			Email:     r.FormValue("email"),
			Password:  r.FormValue("password"),
			Role:      application.Role(r.FormValue("role")),
			Interests: form.list("interests"),
			Image:     image,
		}
	} else {
		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.log(ctx, "Register", "error_kind", "bad_request").InfoContext(ctx, "failed to decode register request", "error", err)
			h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		params = application.RegisterParams{
			Name:      req.Name,
			Email:     req.Email,
			Password:  req.Password,
			Role:      application.Role(req.Role),
			Interests: req.Interests,
		}
	}

	if err := h.service.Register(ctx, params); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, messageResponse{Message: "OTP sent to your email"})
}

type otpRequest struct {
	Email   string `json:"email"`
	OTP     string `json:"otp"`
	Purpose string `json:"purpose"`
}

func (h *IdentityHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.VerifySignupOTP(ctx, req.Email, req.OTP)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.writeAuthResult(ctx, w, http.StatusCreated, result)
}

func (h *IdentityHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	purpose := application.OTPPurpose(req.Purpose)
	if purpose == "" {
		purpose = application.OTPPurposeSignup
	}

	if err := h.service.ResendOTP(ctx, req.Email, purpose); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, messageResponse{Message: "OTP resent"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *IdentityHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.writeAuthResult(ctx, w, http.StatusOK, result)
}

func (h *IdentityHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var refresh string
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		refresh = cookie.Value
	}

	err := h.service.Logout(ctx, optionalPrincipal(ctx), refresh)
	h.clearRefreshCookie(w)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *IdentityHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		h.responder.writeError(ctx, w, http.StatusUnauthorized, errMissingRefresh)
		return
	}

	access, err := h.service.RefreshAccessToken(ctx, cookie.Value)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, accessTokenResponse{AccessToken: access})
}

func (h *IdentityHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if err := h.service.ForgotPassword(ctx, req.Email); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, messageResponse{Message: "If the account exists, a reset code has been sent"})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (h *IdentityHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	err := h.service.ResetPassword(ctx, application.ResetPasswordParams{Email: req.Email, OTP: req.OTP, NewPassword: req.NewPassword})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.clearRefreshCookie(w)
	h.responder.writeJSON(ctx, w, http.StatusOK, messageResponse{Message: "Password reset successful"})
}

type userResponse struct {
	User userDTO `json:"user"`
}

func (h *IdentityHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}

	user, err := h.service.Profile(ctx, principal)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

type updateProfileRequest struct {
	Name      *string  `json:"name"`
	Interests []string `json:"interests"`
	Location  *geoDTO  `json:"location"`
}

func (h *IdentityHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}

	var params application.UpdateProfileParams
	if isMultipart(r) {
		image, release, err := parseMultipart(w, r, "image")
		defer release()
		if err != nil {
			h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		form := newFormFields(r)
		params.Name = form.text("name")
		params.Interests = form.list("interests")
		lat, lng := form.number("lat"), form.number("lng")
		if lat != nil && lng != nil {
			params.Location = &application.GeoPoint{Lat: *lat, Lng: *lng}
		}
		params.Image = image
		if err := form.err(); err != nil {
			h.responder.handleServiceError(ctx, w, err)
			return
		}
	} else {
		var req updateProfileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		params = application.UpdateProfileParams{Name: req.Name, Interests: req.Interests, Location: req.Location.toPoint()}
	}

	user, err := h.service.UpdateProfile(ctx, principal, params)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *IdentityHandler) BecomeOrganizer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}

	result, err := h.service.BecomeOrganizer(ctx, principal)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.log(ctx, "BecomeOrganizer", "user_id", principal.UserID).InfoContext(ctx, "user promoted to organizer")
	h.writeAuthResult(ctx, w, http.StatusOK, result)
}

type bookmarkResponse struct {
	EventID    string `json:"eventId"`
	Bookmarked bool   `json:"bookmarked"`
}

func (h *IdentityHandler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := principalOrReject(ctx, w, h.responder)
	if !ok {
		return
	}
	eventID := chi.URLParam(r, "eventId")

	bookmarked, err := h.service.ToggleBookmark(ctx, principal, eventID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, bookmarkResponse{EventID: eventID, Bookmarked: bookmarked})
}

// OAuthStart redirects the browser to the provider's consent page.
func (h *IdentityHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "provider")
	provider, err := h.providers.Get(name)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusNotFound, errors.New("Unknown sign-in provider"))
		return
	}
	state, err := oauth.NewState()
	if err != nil {
		h.log(ctx, "OAuthStart", "provider", name).ErrorContext(ctx, "state generation failed", "error", err)
		h.responder.writeError(ctx, w, http.StatusInternalServerError, nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// OAuthCallback completes the flow and hands the access token to the frontend.
func (h *IdentityHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "provider")
	logger := h.log(ctx, "OAuthCallback", "provider", name)

	fail := func(reason string, err error) {
		logger.WarnContext(ctx, "social login failed", "reason", reason, "error", err)
		http.Redirect(w, r, h.config.FrontendURL+"/login?error="+url.QueryEscape(reason), http.StatusFound)
	}

	provider, err := h.providers.Get(name)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusNotFound, errors.New("Unknown sign-in provider"))
		return
	}
	cookie, err := r.Cookie(stateCookieName)
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: h.config.SecureCookies})
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		fail("invalid_state", err)
		return
	}
	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		fail("access_denied", errors.New(providerErr))
		return
	}

	profile, err := provider.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		fail("oauth_failed", err)
		return
	}
	result, err := h.service.SocialLogin(ctx, profile)
	if err != nil {
		fail("oauth_failed", err)
		return
	}

	h.setRefreshCookie(w, result.Tokens.RefreshToken)
	logger.InfoContext(ctx, "social login completed", "user_id", result.User.ID)
	target := h.config.FrontendURL + "/oauth-success?token=" + url.QueryEscape(result.Tokens.AccessToken)
	http.Redirect(w, r, target, http.StatusFound)
}

type authResponse struct {
	User        userDTO `json:"user"`
	AccessToken string  `json:"accessToken"`
}

func (h *IdentityHandler) writeAuthResult(ctx context.Context, w http.ResponseWriter, status int, result application.AuthResult) {
	h.setRefreshCookie(w, result.Tokens.RefreshToken)
	h.responder.writeJSON(ctx, w, status, authResponse{User: toUserDTO(result.User), AccessToken: result.Tokens.AccessToken})
}

func (h *IdentityHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.config.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *IdentityHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
