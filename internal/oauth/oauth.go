// Package oauth implements the Google and GitHub sign-in flows on top of
// golang.org/x/oauth2.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/spotevents/spot/internal/application"
)

// ErrUnknownProvider is returned for providers that are not configured.
var ErrUnknownProvider = errors.New("oauth: unknown provider")

// ErrNoEmail is returned when the provider does not disclose a verified address.
var ErrNoEmail = errors.New("oauth: provider returned no verified email")

// Provider runs one OAuth2 authorization-code flow.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (application.SocialProfile, error)
}

// Credentials identify the application at a provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether both values are present.
func (c Credentials) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Endpoints overrides provider URLs, mainly for tests.
type Endpoints struct {
	OAuth   oauth2.Endpoint
	Profile string
	Emails  string
}

type provider struct {
	name      string
	config    *oauth2.Config
	endpoints Endpoints
	fetch     func(ctx context.Context, client *http.Client, endpoints Endpoints) (application.SocialProfile, error)
}

func (p *provider) Name() string { return p.name }

func (p *provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *provider) Exchange(ctx context.Context, code string) (application.SocialProfile, error) {
	if code == "" {
		return application.SocialProfile{}, fmt.Errorf("oauth: %s: missing authorization code", p.name)
	}
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return application.SocialProfile{}, fmt.Errorf("oauth: %s: exchange code: %w", p.name, err)
	}
	profile, err := p.fetch(ctx, p.config.Client(ctx, token), p.endpoints)
	if err != nil {
		return application.SocialProfile{}, fmt.Errorf("oauth: %s: %w", p.name, err)
	}
	profile.Provider = p.name
	return profile, nil
}

// NewGoogle returns the Google provider. A nil override uses the public endpoints.
func NewGoogle(creds Credentials, redirectURL string, override *Endpoints) Provider {
	eps := Endpoints{OAuth: endpoints.Google, Profile: "https://openidconnect.googleapis.com/v1/userinfo"}
	if override != nil {
		eps = *override
	}
	return &provider{
		name: "google",
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     eps.OAuth,
			Scopes:       []string{"openid", "email", "profile"},
		},
		endpoints: eps,
		fetch:     fetchGoogleProfile,
	}
}

// NewGitHub returns the GitHub provider. A nil override uses the public endpoints.
func NewGitHub(creds Credentials, redirectURL string, override *Endpoints) Provider {
	eps := Endpoints{
		OAuth:   endpoints.GitHub,
		Profile: "https://api.github.com/user",
		Emails:  "https://api.github.com/user/emails",
	}
	if override != nil {
		eps = *override
	}
	return &provider{
		name: "github",
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     eps.OAuth,
			Scopes:       []string{"read:user", "user:email"},
		},
		endpoints: eps,
		fetch:     fetchGitHubProfile,
	}
}

func fetchGoogleProfile(ctx context.Context, client *http.Client, eps Endpoints) (application.SocialProfile, error) {
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := getJSON(ctx, client, eps.Profile, &info); err != nil {
		return application.SocialProfile{}, err
	}
	if info.Email == "" || !info.EmailVerified {
		return application.SocialProfile{}, ErrNoEmail
	}
	return application.SocialProfile{ProviderID: info.Sub, Email: info.Email, Name: info.Name, AvatarURL: info.Picture}, nil
}

func fetchGitHubProfile(ctx context.Context, client *http.Client, eps Endpoints) (application.SocialProfile, error) {
	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, eps.Profile, &user); err != nil {
		return application.SocialProfile{}, err
	}
	profile := application.SocialProfile{
		ProviderID: strconv.FormatInt(user.ID, 10),
		Email:      user.Email,
		Name:       user.Name,
		AvatarURL:  user.AvatarURL,
	}
	if profile.Name == "" {
		profile.Name = user.Login
	}
	if profile.Email != "" {
		return profile, nil
	}

	// Private addresses are only listed on the emails endpoint.
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, eps.Emails, &emails); err != nil {
		return application.SocialProfile{}, err
	}
	for _, e := range emails {
		if e.Verified && (e.Primary || profile.Email == "") {
			profile.Email = e.Email
		}
	}
	if profile.Email == "" {
		return application.SocialProfile{}, ErrNoEmail
	}
	return profile, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("fetch profile: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}
	return nil
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry indexes providers by Name. Nil entries are skipped.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// Get returns the named provider or ErrUnknownProvider.
func (r *Registry) Get(name string) (Provider, error) {
	if r != nil {
		if p, ok := r.providers[name]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// NewState returns a random value for the state parameter.
func NewState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("oauth: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
