// Package mongo stores Spot data in MongoDB through the official driver.
//
// Collections mirror the persistence models one to one. Uniqueness (user
// name, email, provider IDs, ticket codes per event, payment intents) and
// expiry of pending registrations and one-time codes are enforced by the
// indexes created in EnsureIndexes, so call it once at startup.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spotevents/spot/internal/persistence"
)

const (
	usersCollection         = "users"
	pendingUsersCollection  = "pending_users"
	otpsCollection          = "otps"
	eventsCollection        = "events"
	ticketsCollection       = "tickets"
	checkInsCollection      = "check_ins"
	transactionsCollection  = "transactions"
	payoutsCollection       = "payouts"
	subscriptionsCollection = "subscriptions"
	analyticsCollection     = "analytics_events"
)

// Config describes how to reach the database.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Storage owns the client and the repositories built on it.
type Storage struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
	repos  persistence.Repositories
}

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return client, nil
}

// Open connects to config.URI and returns storage over config.Database.
// Call EnsureIndexes before use.
func Open(ctx context.Context, config Config, logger *slog.Logger) (*Storage, error) {
	if strings.TrimSpace(config.URI) == "" {
		return nil, errors.New("mongo: URI cannot be empty")
	}
	if strings.TrimSpace(config.Database) == "" {
		return nil, errors.New("mongo: database name cannot be empty")
	}
	client, err := Connect(ctx, config.URI, config.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	return New(client, client.Database(config.Database), logger), nil
}

// New wraps an existing client and database.
func New(client *mongo.Client, db *mongo.Database, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		client: client,
		db:     db,
		logger: logger.With("component", "mongo"),
		repos: persistence.Repositories{
			Users:         NewUserRepository(db),
			PendingUsers:  NewPendingUserRepository(db),
			OTPs:          NewOTPRepository(db),
			Events:        NewEventRepository(db),
			Tickets:       NewTicketRepository(db),
			CheckIns:      NewCheckInRepository(db),
			Transactions:  NewTransactionRepository(db),
			Payouts:       NewPayoutRepository(db),
			Subscriptions: NewSubscriptionRepository(db),
			Analytics:     NewAnalyticsRepository(db),
		},
	}
}

// Repositories returns the repository bundle.
func (s *Storage) Repositories() persistence.Repositories {
	return s.repos
}

// Database returns the underlying database handle.
func (s *Storage) Database() *mongo.Database {
	return s.db
}

// Ping checks the primary is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// PurgeExpired deletes pending registrations and one-time codes past their
// expiry. The TTL monitor does the same eventually; this makes it immediate.
func (s *Storage) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, name := range []string{pendingUsersCollection, otpsCollection} {
		res, err := s.db.Collection(name).DeleteMany(ctx, expiredFilter(now))
		if err != nil {
			return total, mapError(err)
		}
		total += res.DeletedCount
	}
	if total > 0 {
		s.logger.DebugContext(ctx, "expired verification records purged", "count", total)
	}
	return total, nil
}

// Close disconnects the client.
func (s *Storage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return persistence.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	}
	return err
}
