package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"
)

func TestScanMigrations(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"migrations/002_add_index.sql":     {Data: []byte("CREATE INDEX idx_things_name ON things(name);")},
		"migrations/001_create_things.sql": {Data: []byte("-- Description: create things\nCREATE TABLE things (id TEXT PRIMARY KEY, name TEXT);")},
		"migrations/README.md":             {Data: []byte("ignored")},
	}

	migrations, err := NewScanner(files, "migrations").ScanMigrations()
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[1].Version != "002" {
		t.Fatalf("expected ascending versions, got %s, %s", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Description != "create things" {
		t.Fatalf("expected description from comment, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "add index" {
		t.Fatalf("expected description from file name, got %q", migrations[1].Description)
	}
	if migrations[0].Checksum == "" || migrations[0].Checksum == migrations[1].Checksum {
		t.Fatalf("expected distinct checksums")
	}
}

func TestScanMigrationsRejectsBadFiles(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		files fstest.MapFS
		want  error
	}{
		"bad name": {
			files: fstest.MapFS{"m/create.sql": {Data: []byte("SELECT 1;")}},
			want:  ErrInvalidMigrationFile,
		},
		"empty body": {
			files: fstest.MapFS{"m/001_empty.sql": {Data: []byte("-- nothing here\n")}},
			want:  ErrInvalidMigrationFile,
		},
		"duplicate version": {
			files: fstest.MapFS{
				"m/001_a.sql":  {Data: []byte("SELECT 1;")},
				"m/0001_b.sql": {Data: []byte("SELECT 2;")},
			},
			want: ErrDuplicateVersion,
		},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewScanner(tc.files, "m").ScanMigrations()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := splitStatements("-- header\nCREATE TABLE a (id TEXT);\n\n-- trailing comment\nCREATE TABLE b (id TEXT);\n")
	if len(got) != 2 || got[0] != "CREATE TABLE a (id TEXT)" || got[1] != "CREATE TABLE b (id TEXT)" {
		t.Fatalf("unexpected statements %#v", got)
	}
}

func TestManagerRunMigrations(t *testing.T) {
	t.Parallel()

	db, err := Open(InMemorySQLiteConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files := fstest.MapFS{
		"001_create_things.sql": {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
		"002_add_name.sql":      {Data: []byte("ALTER TABLE things ADD COLUMN name TEXT NOT NULL DEFAULT '';")},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewManager(NewScanner(files, "."), NewSQLiteExecutor(db), logger)
	ctx := context.Background()

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO things (id, name) VALUES ('a', 'b')`); err != nil {
		t.Fatalf("expected migrated schema, got %v", err)
	}

	// A second run is a no-op.
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}
	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentVersion != "002" || len(status.Pending) != 0 || len(status.Applied) != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	files["001_create_things.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY);")}
	if err := manager.RunMigrations(ctx); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestManagerRollsBackFailedMigration(t *testing.T) {
	t.Parallel()

	db, err := Open(InMemorySQLiteConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files := fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE good (id TEXT);\nCREATE TABLE good (id TEXT);")},
	}
	manager := NewManager(NewScanner(files, "."), NewSQLiteExecutor(db), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	if err := manager.RunMigrations(ctx); !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'good'`).Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected partial migration to be rolled back")
	}
	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(status.Pending) != 1 {
		t.Fatalf("expected migration to stay pending, got %+v", status)
	}
}

func TestValidateSequence(t *testing.T) {
	t.Parallel()

	gap := []Migration{{Version: "001"}, {Version: "003"}}
	if err := validateSequence(gap, nil); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected gap to be rejected, got %v", err)
	}
	orphan := []AppliedMigration{{Version: "002"}}
	if err := validateSequence([]Migration{{Version: "001"}}, orphan); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected orphan applied version to be rejected, got %v", err)
	}
}

func TestSQLiteConfig(t *testing.T) {
	t.Parallel()

	if err := (SQLiteConfig{}).Validate(); err == nil {
		t.Fatalf("expected empty DSN to be rejected")
	}
	if err := (SQLiteConfig{DSN: "x.db", JournalMode: "SIDEWAYS"}).Validate(); err == nil {
		t.Fatalf("expected bad journal mode to be rejected")
	}
	if got := filePath("file:data/spot.db?cache=shared"); got != "data/spot.db" {
		t.Fatalf("unexpected file path %q", got)
	}
	if got := filePath(":memory:"); got != "" {
		t.Fatalf("expected no file for memory database, got %q", got)
	}
	dsn := DefaultSQLiteConfig("file:spot.db").dataSource()
	if dsn != "file:spot.db?_pragma=busy_timeout%285000%29&_pragma=foreign_keys%281%29&_pragma=journal_mode%28WAL%29&_pragma=synchronous%28NORMAL%29&_txlock=immediate" {
		t.Fatalf("unexpected data source %q", dsn)
	}
}
