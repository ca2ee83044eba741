// Package seen provides the SQLite-backed set of articles already delivered.
package seen

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/newsbot/internal/apperr"
	"github.com/starford/newsbot/internal/fingerprint"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS seen_articles (
	fingerprint     TEXT PRIMARY KEY,
	title           TEXT NOT NULL DEFAULT '',
	url             TEXT NOT NULL DEFAULT '',
	source_name     TEXT NOT NULL DEFAULT '',
	sent_at         INTEGER NOT NULL,
	relevance_score REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_seen_sent_at ON seen_articles(sent_at);
`

const tableName = "seen_articles"

// DB wraps a sql.DB with seen-set operations.
type DB struct {
	conn   *sql.DB
	hasher fingerprint.Hasher
	logger *slog.Logger
	now    func() time.Time
	psql   sq.StatementBuilderType
}

// Option tweaks a DB at open time.
type Option func(*DB)

// WithLogger sets the logger used for swallowed write failures.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// WithURLNormalization strips tracking parameters before fingerprinting.
func WithURLNormalization(enabled bool) Option {
	return func(db *DB) {
		db.hasher = fingerprint.NewHasher(enabled)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		if now != nil {
			db.now = now
		}
	}
}

// Open opens (or creates) the SQLite file, creating its directory, and applies the schema.
// Failures wrap apperr.ErrStoreInit.
func Open(path string, opts ...Option) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create dir %s: %v", apperr.ErrStoreInit, dir, err)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", apperr.ErrStoreInit, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ping: %v", apperr.ErrStoreInit, err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", apperr.ErrStoreInit, err)
	}
	return newDB(conn, opts...), nil
}

func newDB(conn *sql.DB, opts ...Option) *DB {
	db := &DB{
		conn:   conn,
		hasher: fingerprint.NewHasher(false),
		logger: slog.Default(),
		now:    time.Now,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
