package seen

import (
	"context"
	"time"

	"github.com/starford/newsbot/internal/models"
)

// Store defines the seen-set operations used by the pipeline.
// Consumers should depend on this interface rather than the concrete *DB type.
type Store interface {
	IsSeen(ctx context.Context, a models.Article) (bool, error)
	MarkSeen(ctx context.Context, a models.ScoredArticle) bool
	MarkSeenBatch(ctx context.Context, items []models.ScoredArticle) int
	FilterUnseen(ctx context.Context, items []models.ScoredArticle) ([]models.ScoredArticle, FilterStats)
	EvictOlderThan(ctx context.Context, retention time.Duration) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// Record is one persisted row.
type Record struct {
	Fingerprint    string
	Title          string
	URL            string
	SourceName     string
	SentAt         time.Time
	RelevanceScore float64
}

// FilterStats reports how many articles FilterUnseen kept and dropped.
type FilterStats struct {
	Seen   int
	Unseen int
}

// Stats are aggregate counts over the seen set.
type Stats struct {
	TotalTracked int `json:"total_tracked"`
	SentLast24h  int `json:"sent_last_24h"`
}

// DefaultRetention is how long delivered articles are remembered.
const DefaultRetention = 30 * 24 * time.Hour

const (
	maxTitleLen  = 200
	lookupChunk  = 500
	last24hRange = 24 * time.Hour
)
