// Package testutil provides shared test helpers for setting up journals.
package testutil

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/dia/internal/journal"
	"github.com/starford/dia/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dia-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Clock returns a fixed time source for "YYYY-MM-DD HH:MM" in local time.
func Clock(ts string) func() time.Time {
	at, err := time.ParseInLocation("2006-01-02 15:04", ts, time.Local)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return at }
}

// Logger discards everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestService opens a temporary journal whose pipeline uses the given clock
// and options.
func TestService(t *testing.T, now func() time.Time, opts ...journal.PipelineOption) (*store.DB, *journal.Service) {
	t.Helper()
	db := TestDB(t)
	opts = append([]journal.PipelineOption{journal.WithClock(now), journal.WithLogger(Logger())}, opts...)
	return db, journal.NewService(db, journal.NewPipeline(db, opts...))
}
