package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spotevents/spot/internal/application"
	"github.com/spotevents/spot/internal/auth"
	"github.com/spotevents/spot/internal/broadcast"
	"github.com/spotevents/spot/internal/config"
	httptransport "github.com/spotevents/spot/internal/http"
	"github.com/spotevents/spot/internal/mail"
	"github.com/spotevents/spot/internal/media"
	"github.com/spotevents/spot/internal/oauth"
	"github.com/spotevents/spot/internal/payment"
	"github.com/spotevents/spot/internal/persistence"
	"github.com/spotevents/spot/internal/persistence/mongo"
	"github.com/spotevents/spot/internal/persistence/sqlite"
	"github.com/spotevents/spot/internal/ratelimit"
	"github.com/spotevents/spot/internal/ticketcode"
)

const (
	purgeInterval = 10 * time.Minute
	statsTTL      = 30 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()
	go purgeExpired(ctx, storage, purgeInterval, time.Now, logger)

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer closeLimiter()

	hub := broadcast.NewHub(checkOrigin(cfg), logger)
	broadcaster := broadcast.Multi{hub}
	if cfg.AMQPURL != "" {
		publisher, err := broadcast.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("failed to connect to amqp broker", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		broadcaster = append(broadcaster, publisher)
	}

	tokens, err := auth.NewTokenManager(auth.Config{
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        "spot",
	}, nil)
	if err != nil {
		logger.Error("failed to configure tokens", "error", err)
		os.Exit(1)
	}

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		logger.Error("failed to configure mail", "error", err)
		os.Exit(1)
	}
	images, err := newImageStore(cfg, logger)
	if err != nil {
		logger.Error("failed to configure media", "error", err)
		os.Exit(1)
	}

	gateway := payment.NewStripeGateway(payment.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Logger:        logger,
	})

	idGenerator := uuid.NewString
	now := time.Now
	repos := newApplicationRepositories(storage.Repositories())

	reportService := application.NewReportService(application.ReportServiceDeps{
		Users:         repos.Users,
		Events:        repos.Events,
		Tickets:       repos.Tickets,
		Transactions:  repos.Transactions,
		Payouts:       repos.Payouts,
		Subscriptions: repos.Subscriptions,
		Analytics:     repos.Analytics,
		StatsTTL:      statsTTL,
		IDGenerator:   idGenerator,
		Now:           now,
		Logger:        logger,
	})
	identityService := application.NewIdentityService(application.IdentityServiceDeps{
		Users:        repos.Users,
		PendingUsers: repos.PendingUsers,
		OTPs:         repos.OTPs,
		Events:       repos.Events,
		Passwords:    application.NewArgon2idHasher(application.Argon2idParams{}),
		Codes:        application.BcryptCodeHasher{},
		Tokens:       tokens,
		Mailer:       mailer,
		Images:       images,
		GenerateOTP:  application.GenerateOTP,
		IDGenerator:  idGenerator,
		Now:          now,
		Logger:       logger,
	})
	eventService := application.NewEventService(application.EventServiceDeps{
		Events:      repos.Events,
		Tickets:     repos.Tickets,
		Analytics:   repos.Analytics,
		Images:      images,
		IDGenerator: idGenerator,
		Now:         now,
		Logger:      logger,
	})
	ticketService := application.NewTicketServiceWithLogger(repos.Tickets, repos.Events, ticketcode.Encoder{}, logger)
	checkInService := application.NewCheckInService(application.CheckInServiceDeps{
		Events:      repos.Events,
		Tickets:     repos.Tickets,
		CheckIns:    repos.CheckIns,
		Analytics:   repos.Analytics,
		Broadcaster: broadcaster,
		Stats:       reportService,
		IDGenerator: idGenerator,
		Now:         now,
		Logger:      logger,
	})
	paymentService := application.NewPaymentService(application.PaymentServiceDeps{
		Events:       repos.Events,
		Tickets:      repos.Tickets,
		Transactions: repos.Transactions,
		Gateway:      gateway,
		Broadcaster:  broadcaster,
		Stats:        reportService,
		TicketCodes:  ticketcode.New,
		Currency:     cfg.Currency,
		IDGenerator:  idGenerator,
		Now:          now,
		Logger:       logger,
	})

	eventHandler := httptransport.NewEventHandler(eventService, logger)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Identity: httptransport.NewIdentityHandler(identityService, newOAuthRegistry(cfg), httptransport.IdentityConfig{
			SecureCookies: cfg.IsProduction(),
			RefreshTTL:    tokens.RefreshTTL(),
			FrontendURL:   cfg.FrontendURL,
		}, logger),
		Events:    eventHandler,
		Tickets:   httptransport.NewTicketHandler(ticketService, logger),
		CheckIns:  httptransport.NewCheckInHandler(checkInService, logger),
		Payments:  httptransport.NewPaymentHandler(paymentService, logger),
		Admin:     httptransport.NewAdminHandler(reportService, logger),
		Organizer: httptransport.NewOrganizerHandler(reportService, eventService, hub, logger),
		Verifier:  tokens,
		Limiter:   limiter,
		Health:    storage,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("spot API listening", "addr", server.Addr, "env", cfg.Env, "store", cfg.StoreDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// store is the part of a storage backend the process needs after startup.
type store interface {
	Repositories() persistence.Repositories
	Ping(ctx context.Context) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	Close() error
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		storage, err := mongo.Open(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase}, logger)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureIndexes(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return storage, nil
	case config.StoreSQLite:
		storage, err := sqlite.OpenDSN(cfg.SQLiteDSN, logger)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// purgeExpired removes lapsed pending registrations and one-time codes until
// ctx is cancelled.
func purgeExpired(ctx context.Context, s store, interval time.Duration, now func() time.Time, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.PurgeExpired(ctx, now())
			if err != nil {
				logger.Warn("failed to purge expired verification records", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("purged expired verification records", "count", removed)
			}
		}
	}
}

// newLimiter returns a Redis-backed limiter when RedisAddr is set so budgets
// are shared between replicas, and a process-local one otherwise.
func newLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("rate limiting with in-memory counters")
		return ratelimit.NewMemoryLimiter(nil), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}
	return ratelimit.NewRedisLimiter(client, "spot:ratelimit"), closeFn, nil
}

func newMailer(cfg config.Config, logger *slog.Logger) (application.Mailer, error) {
	mailCfg := mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}
	if !mailCfg.Enabled() {
		logger.Warn("smtp not configured; one-time codes are written to the log")
		return mail.NewLogSender(logger), nil
	}
	sender, err := mail.NewSMTPSender(mailCfg, logger)
	if err != nil {
		return nil, err
	}
	return sender, nil
}

// newImageStore returns nil when Cloudinary is not configured, which turns
// image uploads off.
func newImageStore(cfg config.Config, logger *slog.Logger) (application.ImageStore, error) {
	mediaCfg := media.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryFolder,
	}
	if !mediaCfg.Enabled() {
		logger.Warn("cloudinary not configured; image uploads are disabled")
		return nil, nil
	}
	cloudinary, err := media.NewCloudinary(mediaCfg, logger)
	if err != nil {
		return nil, err
	}
	return cloudinary, nil
}

func newOAuthRegistry(cfg config.Config) *oauth.Registry {
	base := strings.TrimRight(cfg.OAuthRedirectBase, "/")
	callback := func(provider string) string {
		return base + "/api/users/auth/" + provider + "/callback"
	}

	var providers []oauth.Provider
	google := oauth.Credentials{ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret}
	if google.Enabled() {
		providers = append(providers, oauth.NewGoogle(google, callback("google"), nil))
	}
	github := oauth.Credentials{ClientID: cfg.GitHubClientID, ClientSecret: cfg.GitHubClientSecret}
	if github.Enabled() {
		providers = append(providers, oauth.NewGitHub(github, callback("github"), nil))
	}
	return oauth.NewRegistry(providers...)
}

// checkOrigin admits live-feed upgrades from the frontend only. Outside
// production every origin is accepted.
func checkOrigin(cfg config.Config) func(*http.Request) bool {
	if !cfg.IsProduction() || cfg.FrontendURL == "" {
		return func(*http.Request) bool { return true }
	}
	allowed := strings.TrimRight(cfg.FrontendURL, "/")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || strings.EqualFold(strings.TrimRight(origin, "/"), allowed)
	}
}
