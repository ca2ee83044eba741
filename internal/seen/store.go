package seen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/starford/newsbot/internal/models"
)

const insertSQL = `INSERT OR IGNORE INTO seen_articles
	(fingerprint, title, url, source_name, sent_at, relevance_score)
	VALUES (?, ?, ?, ?, ?, ?)`

// Fingerprint returns the identity of an article as stored in the seen set.
func (db *DB) Fingerprint(a models.Article) string {
	return db.hasher.Fingerprint(a.Link)
}

func (db *DB) recordFor(item models.ScoredArticle, sentAt time.Time) Record {
	title := []rune(item.Article.Title)
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	return Record{
		Fingerprint:    db.Fingerprint(item.Article),
		Title:          string(title),
		URL:            item.Article.Link,
		SourceName:     item.Article.SourceName,
		SentAt:         sentAt.UTC(),
		RelevanceScore: item.Score,
	}
}

// IsSeen reports whether the article's fingerprint has been recorded.
func (db *DB) IsSeen(ctx context.Context, a models.Article) (bool, error) {
	query, args, err := db.psql.Select("1").From(tableName).
		Where(sq.Eq{"fingerprint": db.Fingerprint(a)}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("seen: build lookup: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("seen: lookup: %w", err)
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

// MarkSeen records a single delivered article. Re-marking is a no-op.
// It reports whether a new row was written; failures are logged, not returned.
func (db *DB) MarkSeen(ctx context.Context, item models.ScoredArticle) bool {
	rec := db.recordFor(item, db.now())
	res, err := db.conn.ExecContext(ctx, insertSQL,
		rec.Fingerprint, rec.Title, rec.URL, rec.SourceName, rec.SentAt.Unix(), rec.RelevanceScore)
	if err != nil {
		db.logger.Error("seen: mark failed",
			slog.String("url", rec.URL),
			slog.String("error", err.Error()))
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// MarkSeenBatch records delivered articles inside one transaction and returns the
// number of new rows. A failing row is logged and skipped; the rest still commit.
// If the transaction itself cannot begin or commit, nothing from this batch is kept.
func (db *DB) MarkSeenBatch(ctx context.Context, items []models.ScoredArticle) int {
	if len(items) == 0 {
		return 0
	}
	sentAt := db.now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("seen: begin batch failed", slog.String("error", err.Error()))
		return 0
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		db.logger.Error("seen: prepare batch insert failed", slog.String("error", err.Error()))
		return 0
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		rec := db.recordFor(item, sentAt)
		res, err := stmt.ExecContext(ctx,
			rec.Fingerprint, rec.Title, rec.URL, rec.SourceName, rec.SentAt.Unix(), rec.RelevanceScore)
		if err != nil {
			db.logger.Error("seen: mark failed",
				slog.String("url", rec.URL),
				slog.String("error", err.Error()))
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("seen: commit batch failed",
			slog.Int("articles", len(items)),
			slog.String("error", err.Error()))
		return 0
	}

	db.logger.Info("seen: marked articles",
		slog.Int("articles", len(items)),
		slog.Int("new", inserted))
	return inserted
}

// FilterUnseen drops articles already recorded, keeping input order. A failed lookup
// treats its articles as unseen so they are re-sent rather than lost.
func (db *DB) FilterUnseen(ctx context.Context, items []models.ScoredArticle) ([]models.ScoredArticle, FilterStats) {
	fps := make([]string, len(items))
	for i, item := range items {
		fps[i] = db.Fingerprint(item.Article)
	}

	known := make(map[string]struct{})
	for start := 0; start < len(fps); start += lookupChunk {
		end := min(start+lookupChunk, len(fps))
		if err := db.collectKnown(ctx, fps[start:end], known); err != nil {
			db.logger.Error("seen: lookup failed, treating articles as new",
				slog.Int("articles", end-start),
				slog.String("error", err.Error()))
		}
	}

	unseen := make([]models.ScoredArticle, 0, len(items))
	var stats FilterStats
	for i, item := range items {
		if _, ok := known[fps[i]]; ok {
			stats.Seen++
			db.logger.Debug("seen: already sent", slog.String("url", item.Article.Link))
			continue
		}
		unseen = append(unseen, item)
	}
	stats.Unseen = len(unseen)

	db.logger.Info("seen: dedup complete",
		slog.Int("new", stats.Unseen),
		slog.Int("already_sent", stats.Seen))
	return unseen, stats
}

func (db *DB) collectKnown(ctx context.Context, fps []string, known map[string]struct{}) error {
	query, args, err := db.psql.Select("fingerprint").From(tableName).
		Where(sq.Eq{"fingerprint": fps}).
		ToSql()
	if err != nil {
		return fmt.Errorf("seen: build lookup: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("seen: lookup: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return fmt.Errorf("seen: scan: %w", err)
		}
		known[fp] = struct{}{}
	}
	return rows.Err()
}

// EvictOlderThan deletes records sent before now-retention and returns how many were removed.
func (db *DB) EvictOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := db.now().Add(-retention).Unix()
	query, args, err := db.psql.Delete(tableName).
		Where(sq.Lt{"sent_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("seen: build evict: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("seen: evict: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		db.logger.Info("seen: evicted old records",
			slog.Int64("deleted", n),
			slog.Duration("retention", retention))
	}
	return n, nil
}

// Stats returns the total number of tracked articles and how many were sent in the last 24 hours.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	query, args, err := db.psql.Select("COUNT(*)").From(tableName).ToSql()
	if err != nil {
		return st, fmt.Errorf("seen: build stats: %w", err)
	}
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&st.TotalTracked); err != nil {
		return st, fmt.Errorf("seen: count total: %w", err)
	}

	since := db.now().Add(-last24hRange).Unix()
	query, args, err = db.psql.Select("COUNT(*)").From(tableName).
		Where(sq.Gt{"sent_at": since}).
		ToSql()
	if err != nil {
		return st, fmt.Errorf("seen: build stats: %w", err)
	}
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&st.SentLast24h); err != nil {
		return st, fmt.Errorf("seen: count recent: %w", err)
	}
	return st, nil
}

// insertRecord writes a fully specified record. Used to seed history.
func (db *DB) insertRecord(ctx context.Context, rec Record) error {
	_, err := db.conn.ExecContext(ctx, insertSQL,
		rec.Fingerprint, rec.Title, rec.URL, rec.SourceName, rec.SentAt.Unix(), rec.RelevanceScore)
	if err != nil {
		return fmt.Errorf("seen: insert: %w", err)
	}
	return nil
}
