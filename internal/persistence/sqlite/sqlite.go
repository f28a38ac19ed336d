// Package sqlite stores Spot data in an embedded SQLite database through
// modernc.org/sqlite. The schema ships inside the binary and is applied by
// Migrate.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/spotevents/spot/internal/persistence"
	"github.com/spotevents/spot/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage owns the connection pool and the repositories built on it.
type Storage struct {
	pool    *ConnectionPool
	logger  *slog.Logger
	pending *PendingUserRepository
	repos   persistence.Repositories
}

// Open connects to the database described by config. Call Migrate before use.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	pending := NewPendingUserRepository(pool)
	return &Storage{
		pool:    pool,
		logger:  logger,
		pending: pending,
		repos: persistence.Repositories{
			Users:         NewUserRepository(pool),
			PendingUsers:  pending,
			OTPs:          NewOTPRepository(pool),
			Events:        NewEventRepository(pool),
			Tickets:       NewTicketRepository(pool),
			CheckIns:      NewCheckInRepository(pool),
			Transactions:  NewTransactionRepository(pool),
			Payouts:       NewPayoutRepository(pool),
			Subscriptions: NewSubscriptionRepository(pool),
			Analytics:     NewAnalyticsRepository(pool),
		},
	}, nil
}

// OpenDSN opens a file database with the default pool settings.
func OpenDSN(dsn string, logger *slog.Logger) (*Storage, error) {
	return Open(migration.DefaultSQLiteConfig(dsn), logger)
}

// Migrate applies any schema migrations that have not run yet.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Repositories returns the repository bundle.
func (s *Storage) Repositories() persistence.Repositories {
	return s.repos
}

// Ping checks the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PurgeExpired removes registrations and one-time codes past their expiry.
func (s *Storage) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.pending.PurgeExpired(ctx, now)
}

// Close releases the pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
