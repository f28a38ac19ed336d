package oauth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// providerServer fakes the token endpoint and the profile APIs.
func providerServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"bad_verification_code"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"access-123","token_type":"bearer"}`)
	})
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer access-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testEndpoints(srv *httptest.Server) *Endpoints {
	return &Endpoints{
		OAuth: oauth2.Endpoint{
			AuthURL:   srv.URL + "/authorize",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Profile: srv.URL + "/profile",
		Emails:  srv.URL + "/emails",
	}
}

func TestGoogleExchange(t *testing.T) {
	t.Parallel()

	srv := providerServer(t, map[string]string{
		"/profile": `{"sub":"g-1","email":"ada@example.com","email_verified":true,"name":"Ada Lovelace","picture":"https://img/ada"}`,
	})
	p := NewGoogle(Credentials{ClientID: "id", ClientSecret: "secret"}, "http://localhost/callback", testEndpoints(srv))

	profile, err := p.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if profile.Provider != "google" || profile.ProviderID != "g-1" || profile.Email != "ada@example.com" || profile.Name != "Ada Lovelace" {
		t.Fatalf("unexpected profile %#v", profile)
	}

	if _, err := p.Exchange(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected exchange error for a rejected code")
	}
	if _, err := p.Exchange(context.Background(), ""); err == nil {
		t.Fatal("expected error for an empty code")
	}
}

func TestGoogleRequiresVerifiedEmail(t *testing.T) {
	t.Parallel()

	srv := providerServer(t, map[string]string{
		"/profile": `{"sub":"g-2","email":"eve@example.com","email_verified":false}`,
	})
	p := NewGoogle(Credentials{ClientID: "id", ClientSecret: "secret"}, "", testEndpoints(srv))
	if _, err := p.Exchange(context.Background(), "good-code"); !errors.Is(err, ErrNoEmail) {
		t.Fatalf("expected ErrNoEmail, got %v", err)
	}
}

func TestGitHubExchange(t *testing.T) {
	t.Parallel()

	t.Run("public email", func(t *testing.T) {
		t.Parallel()
		srv := providerServer(t, map[string]string{
			"/profile": `{"id":42,"login":"octo","email":"octo@example.com","avatar_url":"https://img/octo"}`,
		})
		p := NewGitHub(Credentials{ClientID: "id", ClientSecret: "secret"}, "", testEndpoints(srv))
		profile, err := p.Exchange(context.Background(), "good-code")
		if err != nil {
			t.Fatalf("Exchange: %v", err)
		}
		if profile.Provider != "github" || profile.ProviderID != "42" || profile.Name != "octo" || profile.Email != "octo@example.com" {
			t.Fatalf("unexpected profile %#v", profile)
		}
	})

	t.Run("private email uses primary verified address", func(t *testing.T) {
		t.Parallel()
		srv := providerServer(t, map[string]string{
			"/profile": `{"id":7,"login":"ghost","name":"Ghost"}`,
			"/emails":  `[{"email":"old@example.com","primary":false,"verified":true},{"email":"main@example.com","primary":true,"verified":true},{"email":"x@example.com","primary":false,"verified":false}]`,
		})
		p := NewGitHub(Credentials{ClientID: "id", ClientSecret: "secret"}, "", testEndpoints(srv))
		profile, err := p.Exchange(context.Background(), "good-code")
		if err != nil {
			t.Fatalf("Exchange: %v", err)
		}
		if profile.Email != "main@example.com" || profile.Name != "Ghost" {
			t.Fatalf("unexpected profile %#v", profile)
		}
	})

	t.Run("no verified email", func(t *testing.T) {
		t.Parallel()
		srv := providerServer(t, map[string]string{
			"/profile": `{"id":8,"login":"nomail"}`,
			"/emails":  `[{"email":"x@example.com","primary":true,"verified":false}]`,
		})
		p := NewGitHub(Credentials{ClientID: "id", ClientSecret: "secret"}, "", testEndpoints(srv))
		if _, err := p.Exchange(context.Background(), "good-code"); !errors.Is(err, ErrNoEmail) {
			t.Fatalf("expected ErrNoEmail, got %v", err)
		}
	})
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	t.Parallel()

	p := NewGitHub(Credentials{ClientID: "client-1", ClientSecret: "secret"}, "http://localhost/cb", nil)
	raw := p.AuthCodeURL("state-xyz")
	if !strings.HasPrefix(raw, "https://github.com/login/oauth/authorize") {
		t.Fatalf("unexpected auth URL %q", raw)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := parsed.Query()
	if q.Get("state") != "state-xyz" || q.Get("client_id") != "client-1" || q.Get("redirect_uri") != "http://localhost/cb" {
		t.Fatalf("unexpected query %v", q)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	google := NewGoogle(Credentials{ClientID: "a", ClientSecret: "b"}, "", nil)
	registry := NewRegistry(google, nil)
	if p, err := registry.Get("google"); err != nil || p != google {
		t.Fatalf("Get(google) = %v, %v", p, err)
	}
	if _, err := registry.Get("github"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	var empty *Registry
	if _, err := empty.Get("google"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider from nil registry, got %v", err)
	}
}

func TestNewStateIsRandom(t *testing.T) {
	t.Parallel()

	a, err := NewState()
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	b, _ := NewState()
	if a == b || len(a) != 32 {
		t.Fatalf("unexpected states %q %q", a, b)
	}
}
