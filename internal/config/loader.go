// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment names accepted in SPOT_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Store drivers accepted in SPOT_STORE_DRIVER.
const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// Config captures environment driven configuration values for the Spot API.
type Config struct {
	HTTPPort    int
	Env         string
	FrontendURL string

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	SQLiteDSN     string

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	RedisAddr    string
	AMQPURL      string
	AMQPExchange string

	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	OAuthRedirectBase  string
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads an optional .env file from the working directory and then parses
// the process environment. Variables already set take precedence over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: read .env: %w", err)
	}
	return FromEnvironment()
}

// FromEnvironment parses the process environment only.
//
// Defaults are applied for optional values; every missing or malformed key is
// collected so the operator sees all problems in one message.
func FromEnvironment() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		Env:             EnvDevelopment,
		FrontendURL:     "http://localhost:3000",
		StoreDriver:     StoreMongo,
		MongoURI:        "mongodb://127.0.0.1:27017",
		MongoDatabase:   "spot",
		SQLiteDSN:       "file:spot.db",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		AMQPExchange:    "spot.events",
		Currency:        "usd",
		SMTPPort:        587,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	positiveInt := func(key string, dst *int) {
		if value := env(key); value != "" {
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				invalid = append(invalid, key)
				return
			}
			*dst = n
		}
	}
	positiveDuration := func(key string, dst *time.Duration) {
		if value := env(key); value != "" {
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				invalid = append(invalid, key)
				return
			}
			*dst = d
		}
	}
	optional := func(key string, dst *string) {
		if value := env(key); value != "" {
			*dst = value
		}
	}
	required := func(key string, dst *string) {
		if value := env(key); value != "" {
			*dst = value
		} else {
			missing = append(missing, key)
		}
	}

	positiveInt("SPOT_HTTP_PORT", &cfg.HTTPPort)

	if value := strings.ToLower(env("SPOT_ENV")); value != "" {
		switch value {
		case EnvDevelopment, EnvProduction, EnvTest:
			cfg.Env = value
		default:
			invalid = append(invalid, "SPOT_ENV")
		}
	}
	optional("SPOT_FRONTEND_URL", &cfg.FrontendURL)
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	if value := strings.ToLower(env("SPOT_STORE_DRIVER")); value != "" {
		switch value {
		case StoreMongo, StoreSQLite:
			cfg.StoreDriver = value
		default:
			invalid = append(invalid, "SPOT_STORE_DRIVER")
		}
	}
	optional("SPOT_MONGO_URI", &cfg.MongoURI)
	optional("SPOT_MONGO_DATABASE", &cfg.MongoDatabase)
	optional("SPOT_SQLITE_DSN", &cfg.SQLiteDSN)

	required("SPOT_JWT_ACCESS_SECRET", &cfg.JWTAccessSecret)
	required("SPOT_JWT_REFRESH_SECRET", &cfg.JWTRefreshSecret)
	if cfg.JWTAccessSecret != "" && cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		invalid = append(invalid, "SPOT_JWT_REFRESH_SECRET")
	}
	positiveDuration("SPOT_ACCESS_TOKEN_TTL", &cfg.AccessTokenTTL)
	positiveDuration("SPOT_REFRESH_TOKEN_TTL", &cfg.RefreshTokenTTL)

	optional("SPOT_REDIS_ADDR", &cfg.RedisAddr)
	optional("SPOT_AMQP_URL", &cfg.AMQPURL)
	optional("SPOT_AMQP_EXCHANGE", &cfg.AMQPExchange)

	if cfg.Env == EnvProduction {
		required("SPOT_STRIPE_SECRET_KEY", &cfg.StripeSecretKey)
		required("SPOT_STRIPE_WEBHOOK_SECRET", &cfg.StripeWebhookSecret)
	} else {
		optional("SPOT_STRIPE_SECRET_KEY", &cfg.StripeSecretKey)
		optional("SPOT_STRIPE_WEBHOOK_SECRET", &cfg.StripeWebhookSecret)
	}
	if value := strings.ToLower(env("SPOT_CURRENCY")); value != "" {
		if len(value) != 3 {
			invalid = append(invalid, "SPOT_CURRENCY")
		} else {
			cfg.Currency = value
		}
	}

	optional("SPOT_SMTP_HOST", &cfg.SMTPHost)
	positiveInt("SPOT_SMTP_PORT", &cfg.SMTPPort)
	optional("SPOT_SMTP_USERNAME", &cfg.SMTPUsername)
	optional("SPOT_SMTP_PASSWORD", &cfg.SMTPPassword)
	optional("SPOT_MAIL_FROM", &cfg.MailFrom)

	optional("SPOT_CLOUDINARY_CLOUD_NAME", &cfg.CloudinaryCloudName)
	optional("SPOT_CLOUDINARY_API_KEY", &cfg.CloudinaryAPIKey)
	optional("SPOT_CLOUDINARY_API_SECRET", &cfg.CloudinaryAPISecret)
	optional("SPOT_CLOUDINARY_FOLDER", &cfg.CloudinaryFolder)

	optional("SPOT_GOOGLE_CLIENT_ID", &cfg.GoogleClientID)
	optional("SPOT_GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret)
	optional("SPOT_GITHUB_CLIENT_ID", &cfg.GitHubClientID)
	optional("SPOT_GITHUB_CLIENT_SECRET", &cfg.GitHubClientSecret)
	cfg.OAuthRedirectBase = fmt.Sprintf("http://localhost:%d", cfg.HTTPPort)
	optional("SPOT_OAUTH_REDIRECT_BASE", &cfg.OAuthRedirectBase)
	cfg.OAuthRedirectBase = strings.TrimRight(cfg.OAuthRedirectBase, "/")

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
