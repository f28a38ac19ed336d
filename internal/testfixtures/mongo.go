package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spotevents/spot/internal/persistence"
	"github.com/spotevents/spot/internal/persistence/mongo"
)

// MongoURIEnv names the variable that enables MongoDB-backed tests.
const MongoURIEnv = "SPOT_TEST_MONGO_URI"

// MongoHarness exposes every repository backed by a throwaway database.
type MongoHarness struct {
	persistence.Repositories
	Storage *mongo.Storage
}

// NewMongoHarness connects to the server in SPOT_TEST_MONGO_URI and creates a
// uniquely named database that is dropped on cleanup. The test is skipped
// when the variable is unset.
func NewMongoHarness(tb testing.TB) *MongoHarness {
	tb.Helper()

	uri := os.Getenv(MongoURIEnv)
	if uri == "" {
		tb.Skipf("%s not set", MongoURIEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "spot_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	storage, err := mongo.Open(ctx, mongo.Config{URI: uri, Database: name}, logger)
	if err != nil {
		tb.Fatalf("failed to connect to mongo: %v", err)
	}
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = storage.Database().Drop(ctx)
		_ = storage.Close()
	})
	if err := storage.EnsureIndexes(ctx); err != nil {
		tb.Fatalf("failed to create indexes: %v", err)
	}

	return &MongoHarness{Repositories: storage.Repositories(), Storage: storage}
}
