// Package testutil provides shared test helpers for setting up seen stores.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/newsbot/internal/seen"
)

// TestDB creates a seen store in a temporary directory that is automatically closed.
func TestDB(t *testing.T, opts ...seen.Option) *seen.DB {
	t.Helper()
	opts = append([]seen.Option{seen.WithLogger(DiscardLogger())}, opts...)
	db, err := seen.Open(filepath.Join(t.TempDir(), "seen.db"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
