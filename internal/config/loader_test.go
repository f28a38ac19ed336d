package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"SPOT_HTTP_PORT", "SPOT_ENV", "SPOT_FRONTEND_URL", "SPOT_STORE_DRIVER", "SPOT_MONGO_URI",
	"SPOT_MONGO_DATABASE", "SPOT_SQLITE_DSN", "SPOT_JWT_ACCESS_SECRET", "SPOT_JWT_REFRESH_SECRET",
	"SPOT_ACCESS_TOKEN_TTL", "SPOT_REFRESH_TOKEN_TTL", "SPOT_REDIS_ADDR", "SPOT_AMQP_URL",
	"SPOT_AMQP_EXCHANGE", "SPOT_STRIPE_SECRET_KEY", "SPOT_STRIPE_WEBHOOK_SECRET", "SPOT_CURRENCY",
	"SPOT_SMTP_HOST", "SPOT_SMTP_PORT", "SPOT_SMTP_USERNAME", "SPOT_SMTP_PASSWORD", "SPOT_MAIL_FROM",
	"SPOT_CLOUDINARY_CLOUD_NAME", "SPOT_CLOUDINARY_API_KEY", "SPOT_CLOUDINARY_API_SECRET",
	"SPOT_CLOUDINARY_FOLDER", "SPOT_GOOGLE_CLIENT_ID", "SPOT_GOOGLE_CLIENT_SECRET",
	"SPOT_GITHUB_CLIENT_ID", "SPOT_GITHUB_CLIENT_SECRET", "SPOT_OAUTH_REDIRECT_BASE",
}

// clearEnv empties every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("SPOT_JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("SPOT_JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		setSecrets(t)

		cfg, err := FromEnvironment()
		if err != nil {
			t.Fatalf("FromEnvironment returned error: %v", err)
		}
		if cfg.HTTPPort != 8080 || cfg.Env != EnvDevelopment || cfg.StoreDriver != StoreMongo {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
		if cfg.AccessTokenTTL != 15*time.Minute || cfg.RefreshTokenTTL != 168*time.Hour {
			t.Fatalf("unexpected token TTLs %s / %s", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
		}
		if cfg.MongoDatabase != "spot" || cfg.SQLiteDSN != "file:spot.db" || cfg.Currency != "usd" || cfg.SMTPPort != 587 {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
		if cfg.OAuthRedirectBase != "http://localhost:8080" || cfg.AMQPExchange != "spot.events" {
			t.Fatalf("unexpected derived defaults: %q %q", cfg.OAuthRedirectBase, cfg.AMQPExchange)
		}
		if cfg.IsProduction() {
			t.Fatal("development must not report production")
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := FromEnvironment()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "missing required environment variables: SPOT_JWT_ACCESS_SECRET, SPOT_JWT_REFRESH_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("production requires payment keys", func(t *testing.T) {
		clearEnv(t)
		setSecrets(t)
		t.Setenv("SPOT_ENV", "production")

		_, err := FromEnvironment()
		if err == nil || !strings.Contains(err.Error(), "SPOT_STRIPE_SECRET_KEY") || !strings.Contains(err.Error(), "SPOT_STRIPE_WEBHOOK_SECRET") {
			t.Fatalf("expected missing stripe keys, got %v", err)
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		setSecrets(t)
		t.Setenv("SPOT_HTTP_PORT", "9090")
		t.Setenv("SPOT_STORE_DRIVER", "SQLite")
		t.Setenv("SPOT_SQLITE_DSN", "file:/tmp/spot.db")
		t.Setenv("SPOT_ACCESS_TOKEN_TTL", "5m")
		t.Setenv("SPOT_REFRESH_TOKEN_TTL", "24h")
		t.Setenv("SPOT_SMTP_PORT", "2525")
		t.Setenv("SPOT_CURRENCY", "EUR")
		t.Setenv("SPOT_FRONTEND_URL", "https://spot.example/")

		cfg, err := FromEnvironment()
		if err != nil {
			t.Fatalf("FromEnvironment returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.StoreDriver != StoreSQLite || cfg.SQLiteDSN != "file:/tmp/spot.db" {
			t.Fatalf("unexpected values: %+v", cfg)
		}
		if cfg.AccessTokenTTL != 5*time.Minute || cfg.RefreshTokenTTL != 24*time.Hour {
			t.Fatalf("unexpected TTLs %s / %s", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
		}
		if cfg.SMTPPort != 2525 || cfg.Currency != "eur" {
			t.Fatalf("unexpected smtp port %d or currency %q", cfg.SMTPPort, cfg.Currency)
		}
		if cfg.FrontendURL != "https://spot.example" {
			t.Fatalf("expected trailing slash to be trimmed, got %q", cfg.FrontendURL)
		}
		if cfg.OAuthRedirectBase != "http://localhost:9090" {
			t.Fatalf("expected redirect base to follow the port, got %q", cfg.OAuthRedirectBase)
		}
	})

	t.Run("reports invalid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SPOT_JWT_ACCESS_SECRET", "same")
		t.Setenv("SPOT_JWT_REFRESH_SECRET", "same")
		t.Setenv("SPOT_HTTP_PORT", "-1")
		t.Setenv("SPOT_ENV", "staging")
		t.Setenv("SPOT_STORE_DRIVER", "postgres")
		t.Setenv("SPOT_ACCESS_TOKEN_TTL", "soon")
		t.Setenv("SPOT_CURRENCY", "dollars")

		_, err := FromEnvironment()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid environment variable values: SPOT_HTTP_PORT, SPOT_ENV, SPOT_STORE_DRIVER, SPOT_JWT_REFRESH_SECRET, SPOT_ACCESS_TOKEN_TTL, SPOT_CURRENCY"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	for _, key := range []string{"SPOT_JWT_ACCESS_SECRET", "SPOT_JWT_REFRESH_SECRET", "SPOT_MONGO_DATABASE"} {
		// godotenv only fills variables that are absent, not empty.
		os.Unsetenv(key)
	}
	t.Cleanup(func() {
		for _, key := range []string{"SPOT_JWT_ACCESS_SECRET", "SPOT_JWT_REFRESH_SECRET", "SPOT_MONGO_DATABASE"} {
			os.Unsetenv(key)
		}
	})

	dir := t.TempDir()
	content := "SPOT_JWT_ACCESS_SECRET=file-access\nSPOT_JWT_REFRESH_SECRET=file-refresh\nSPOT_MONGO_DATABASE=spot_dev\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.JWTAccessSecret != "file-access" || cfg.MongoDatabase != "spot_dev" {
		t.Fatalf("expected values from .env, got %+v", cfg)
	}
}

func TestLoadWithoutDotEnv(t *testing.T) {
	clearEnv(t)
	setSecrets(t)
	t.Chdir(t.TempDir())

	if _, err := Load(); err != nil {
		t.Fatalf("Load without .env returned error: %v", err)
	}
}
