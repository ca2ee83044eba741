// Package pipeline runs one collect, score, dedup, deliver and record cycle.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/newsbot/internal/models"
	"github.com/starford/newsbot/internal/relevance"
	"github.com/starford/newsbot/internal/seen"
)

// Collector gathers candidate articles from external feeds.
type Collector interface {
	CollectAll(ctx context.Context, maxAgeHours int) []models.Article
}

// Notifier delivers a digest. Preview mode must not perform network I/O.
type Notifier interface {
	SendDigest(ctx context.Context, items []models.ScoredArticle, preview bool) bool
}

// Lifecycle events passed to Deps.Events.
const (
	EventRunStarted  = "run.started"
	EventRunFinished = "run.finished"
)

// Deps wires the collaborators of a Pipeline.
type Deps struct {
	Collector Collector
	Notifier  Notifier
	// OpenStore acquires the seen store for a single run; the pipeline closes it.
	OpenStore func() (seen.Store, error)
	// Keywords returns the keyword configuration for the next run.
	Keywords func() *relevance.KeywordConfig
	// Limit, when set, trims the unseen set to what one digest can carry. Only the
	// trimmed set is delivered and marked; the rest stays eligible for later runs.
	Limit func([]models.ScoredArticle) []models.ScoredArticle
	// Events, when set, receives "run.started" and "run.finished" notifications.
	Events func(kind string, data any)
	Logger *slog.Logger
}

// Options are the per-run settings.
type Options struct {
	MaxAgeHours int
	Preview     bool
	Retention   time.Duration
}

// Result summarises one run.
type Result struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Preview    bool      `json:"preview"`
	Collected  int       `json:"collected"`
	Relevant   int       `json:"relevant"`
	New        int       `json:"new"`
	Deferred   int       `json:"deferred"`
	Delivered  bool      `json:"delivered"`
	Marked     int       `json:"marked"`
	Evicted    int64     `json:"evicted"`
	Error      string    `json:"error,omitempty"`
}

// Pipeline sequences the collaborators. Runs must not overlap.
type Pipeline struct {
	collector Collector
	notifier  Notifier
	openStore func() (seen.Store, error)
	keywords  func() *relevance.KeywordConfig
	limit     func([]models.ScoredArticle) []models.ScoredArticle
	events    func(kind string, data any)
	logger    *slog.Logger
	now       func() time.Time
	last      atomic.Pointer[Result]
}

// New constructs a Pipeline.
func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keywords := deps.Keywords
	if keywords == nil {
		keywords = relevance.EmptyKeywordConfig
	}
	return &Pipeline{
		collector: deps.Collector,
		notifier:  deps.Notifier,
		openStore: deps.OpenStore,
		keywords:  keywords,
		limit:     deps.Limit,
		events:    deps.Events,
		logger:    logger,
		now:       time.Now,
	}
}

func (p *Pipeline) emit(kind string, data any) {
	if p.events != nil {
		p.events(kind, data)
	}
}

func (p *Pipeline) finish(res *Result) {
	res.FinishedAt = p.now()
	p.last.Store(res)
	p.emit(EventRunFinished, *res)
}

// LastRun returns the summary of the most recently finished run.
func (p *Pipeline) LastRun() (Result, bool) {
	r := p.last.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Run executes one cycle and returns its summary. The only error returned is a failure
// to open the seen store; every other failure is logged and reflected in the Result.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Retention <= 0 {
		opts.Retention = seen.DefaultRetention
	}
	res := Result{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
		Preview:   opts.Preview,
	}
	log := p.logger.With(slog.String("run_id", res.RunID))

	mode := "live"
	if opts.Preview {
		mode = "preview"
	}
	log.Info("pipeline started",
		slog.String("mode", mode),
		slog.Int("max_age_hours", opts.MaxAgeHours))
	p.emit(EventRunStarted, map[string]any{"run_id": res.RunID, "preview": res.Preview})

	store, err := p.openStore()
	if err != nil {
		res.Error = err.Error()
		p.finish(&res)
		return res, fmt.Errorf("pipeline: open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("closing seen store", slog.String("error", err.Error()))
		}
	}()

	articles := p.collector.CollectAll(ctx, opts.MaxAgeHours)
	res.Collected = len(articles)
	if len(articles) == 0 {
		log.Warn("no articles collected from any source")
	}

	scorer := relevance.NewScorer(p.keywords(), log)
	relevant := scorer.Filter(articles)
	res.Relevant = len(relevant)

	unseen, stats := store.FilterUnseen(ctx, relevant)
	res.New = stats.Unseen

	batch := unseen
	if p.limit != nil {
		batch = p.limit(unseen)
	}
	res.Deferred = len(unseen) - len(batch)
	if res.Deferred > 0 {
		log.Info("digest full, remaining articles deferred to the next run", slog.Int("deferred", res.Deferred))
	}

	log.Info("delivering digest", slog.Int("articles", len(batch)))
	res.Delivered = p.notifier.SendDigest(ctx, batch, opts.Preview)

	switch {
	case opts.Preview:
		log.Info("preview complete, nothing marked as sent")
	case res.Delivered:
		res.Marked = store.MarkSeenBatch(ctx, batch)
	default:
		log.Error("delivery failed, articles stay eligible for the next run", slog.Int("articles", len(batch)))
	}

	evicted, err := store.EvictOlderThan(ctx, opts.Retention)
	if err != nil {
		log.Error("evicting old records", slog.String("error", err.Error()))
	}
	res.Evicted = evicted

	p.finish(&res)
	log.Info("pipeline complete",
		slog.Int("collected", res.Collected),
		slog.Int("relevant", res.Relevant),
		slog.Int("new", res.New),
		slog.Int("deferred", res.Deferred),
		slog.Bool("delivered", res.Delivered),
		slog.Int("marked", res.Marked),
		slog.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}
