package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/newsbot/internal"
	"github.com/starford/newsbot/internal/apperr"
	pkgconfig "github.com/starford/newsbot/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrConfig, err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrConfig, err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithDryRun(cmd.Bool("dry-run")),
		internal.WithStatsOnly(cmd.Bool("stats")),
		internal.WithVerbose(cmd.Bool("verbose")),
		internal.WithSchedule(cmd.String("schedule")),
		internal.WithDaily(cmd.Bool("daily")),
		internal.WithHTTPAddr(cmd.String("http-addr")),
	}
	if cmd.IsSet("max-age") {
		opts = append(opts, internal.WithMaxAge(int(cmd.Int("max-age"))))
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "newsbot",
		Usage:  "Daily news digest: collect RSS feeds, score relevance, post new articles to Teams",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print the digest instead of posting it; nothing is marked as sent",
			},
			&cli.StringFlag{
				Name:  "schedule",
				Usage: "Run daily at HH:MM (24-hour, local time) instead of once; requires a value, e.g. --schedule 07:00",
			},
			&cli.BoolFlag{
				Name:  "daily",
				Usage: "Run daily at " + internal.DefaultScheduleAt + " (same as --schedule " + internal.DefaultScheduleAt + ")",
			},
			&cli.IntFlag{
				Name:        "max-age",
				Usage:       "Maximum article age in hours (overrides feeds.max_age_hours)",
				DefaultText: "48",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Print seen-set statistics and exit",
			},
			&cli.StringFlag{
				Name:  "http-addr",
				Usage: "Serve health and status endpoints on this address in scheduled mode",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
