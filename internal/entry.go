// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/newsbot/internal/api"
	"github.com/starford/newsbot/internal/feeds"
	"github.com/starford/newsbot/internal/notify"
	"github.com/starford/newsbot/internal/pipeline"
	"github.com/starford/newsbot/internal/relevance"
	"github.com/starford/newsbot/internal/seen"
	"github.com/starford/newsbot/internal/sse"
	"github.com/starford/newsbot/internal/watch"
)

// Run starts the application with the given options. Depending on the options it
// prints statistics, runs the pipeline once, or runs it daily until interrupted.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{stdout: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	if app.maxAge > 0 {
		cfg.Feeds.MaxAgeHours = app.maxAge
	}
	if app.httpAddr != "" {
		cfg.App.HTTP.Addr = app.httpAddr
	}
	scheduleAt := app.scheduleAt(cfg.Schedule.At)

	logger, closeLog := newLogger(cfg.App, app.verbose)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("sources_path", cfg.Feeds.SourcesPath),
		slog.String("keywords_path", cfg.Feeds.KeywordsPath),
		slog.Int("max_age_hours", cfg.Feeds.MaxAgeHours),
		slog.String("schedule", scheduleAt),
		slog.String("log_level", cfg.App.LogLevel.String()))

	openStore := func() (*seen.DB, error) {
		return seen.Open(cfg.SQLite.Path,
			seen.WithLogger(logger.With("component", "seen")),
			seen.WithURLNormalization(cfg.Dedup.NormalizeURLs))
	}

	// The store must be usable before anything else happens.
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("init seen store: %w", err)
	}
	if app.statsOnly {
		defer db.Close()
		return printStats(ctx, db, app.stdout)
	}
	db.Close()

	var keywords atomic.Pointer[relevance.KeywordConfig]
	keywords.Store(loadKeywords(cfg.Feeds.KeywordsPath, logger))

	collector := feeds.NewCollector(loadSources(cfg.Feeds.SourcesPath, logger), feeds.Options{
		Timeout:       cfg.Feeds.RequestTimeout,
		UserAgent:     cfg.Feeds.UserAgent,
		Workers:       cfg.Feeds.Workers,
		InsecureRetry: cfg.Feeds.InsecureRetry,
	}, logger)

	notifier := notify.NewTeams(notify.Options{
		WebhookURL: cfg.Webhook.URL,
		Timeout:    cfg.Webhook.Timeout,
		Preview:    app.stdout,
	}, logger)

	preview := app.dryRun
	if cfg.Webhook.URL == "" && !preview {
		logger.Warn("no webhook URL configured, falling back to preview mode",
			slog.String("env", EnvWebhookURL))
		preview = true
	}

	// Run and reload events are only observable through the status server.
	var broker *sse.Broker
	var onReload watch.EventCallback
	var events func(kind string, data any)
	if scheduleAt != "" && cfg.App.HTTP.Enabled() {
		broker = sse.NewBroker()
		defer broker.Close()
		onReload = broker.ReloadCallback
		events = broker.Emit
	}

	p := pipeline.New(pipeline.Deps{
		Collector: collector,
		Notifier:  notifier,
		OpenStore: func() (seen.Store, error) {
			db, err := openStore()
			if err != nil {
				return nil, err
			}
			return db, nil
		},
		Keywords: keywords.Load,
		Limit:    notify.CapPerCategory,
		Events:   events,
		Logger:   logger,
	})

	runOpts := pipeline.Options{
		MaxAgeHours: cfg.Feeds.MaxAgeHours,
		Preview:     preview,
		Retention:   cfg.Dedup.Retention(),
	}

	if scheduleAt == "" {
		_, err := p.Run(ctx, runOpts)
		return err
	}

	sched, err := pipeline.ParseSchedule(scheduleAt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled() {
		stats := func(ctx context.Context) (seen.Stats, error) {
			db, err := openStore()
			if err != nil {
				return seen.Stats{}, err
			}
			defer db.Close()
			return db.Stats(ctx)
		}
		httpServer = &http.Server{
			Addr:              cfg.App.HTTP.Addr,
			Handler:           api.NewRouter(api.NewHandler(stats, p, logger), broker, cfg.App.HTTP.Token),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			logger.Info("Starting status server", slog.String("address", cfg.App.HTTP.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	// Daily pipeline runs.
	g.Go(func() error {
		return pipeline.NewScheduler(sched, logger).Start(gCtx, func(ctx context.Context) error {
			_, err := p.Run(ctx, runOpts)
			return err
		})
	})

	// Hot reload of keyword and source files.
	g.Go(func() error {
		targets := []watch.Target{
			{Path: cfg.Feeds.KeywordsPath, Reload: func(path string) error {
				kc, err := relevance.LoadKeywords(path)
				if err != nil {
					return err
				}
				keywords.Store(kc)
				return nil
			}},
			{Path: cfg.Feeds.SourcesPath, Reload: func(path string) error {
				sc, err := feeds.LoadSources(path)
				if err != nil {
					return err
				}
				collector.SetSources(sc)
				return nil
			}},
		}
		if err := watch.Watch(gCtx, targets, logger, onReload); err != nil {
			logger.Warn("config watcher disabled", slog.String("error", err.Error()))
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		cancel()

		if httpServer != nil {
			// Ends open event streams so Shutdown does not wait on them.
			broker.Close()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Scheduler stopped successfully")
	return nil
}

// DefaultScheduleAt is the daily run time used by WithDaily when no time is given.
const DefaultScheduleAt = "07:00"

// scheduleAt resolves the daily run time: an explicit time wins, then the daily
// default, then the config file. Empty means run once.
func (a *application) scheduleAt(configured string) string {
	switch {
	case a.schedule != "":
		return a.schedule
	case a.daily:
		return DefaultScheduleAt
	default:
		return configured
	}
}

func newLogger(cfg ApplicationConfig, verbose bool) (*slog.Logger, func()) {
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	var fileErr error
	if cfg.LogFile != "" {
		f, err := openLogFile(cfg.LogFile)
		if err != nil {
			fileErr = err
		} else {
			out = io.MultiWriter(os.Stdout, f)
			closeFn = func() { f.Close() }
		}
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	if fileErr != nil {
		logger.Warn("log file unavailable, logging to stdout only",
			slog.String("path", cfg.LogFile),
			slog.String("error", fileErr.Error()))
	}
	return logger, closeFn
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// loadKeywords degrades to an empty configuration, which lets nothing through.
func loadKeywords(path string, logger *slog.Logger) *relevance.KeywordConfig {
	kc, err := relevance.LoadKeywords(path)
	if err != nil {
		logger.Error("keyword config unavailable, no article will pass the filter",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return relevance.EmptyKeywordConfig()
	}
	return kc
}

// loadSources degrades to no sources at all.
func loadSources(path string, logger *slog.Logger) *feeds.SourcesConfig {
	sc, err := feeds.LoadSources(path)
	if err != nil {
		logger.Error("sources config unavailable, nothing will be collected",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return &feeds.SourcesConfig{}
	}
	return sc
}

func printStats(ctx context.Context, db *seen.DB, w io.Writer) error {
	st, err := db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	_, err = fmt.Fprintf(w, "\nNewsBot Database Stats:\n  Total articles tracked: %d\n  Sent in last 24 hours:  %d\n",
		st.TotalTracked, st.SentLast24h)
	return err
}
