package internal

import (
	"errors"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/newsbot/internal/feeds"
	"github.com/starford/newsbot/internal/notify"
)

// Environment variables that override the config file.
const (
	EnvWebhookURL  = "TEAMS_WEBHOOK_URL"
	EnvStatusToken = "NEWSBOT_STATUS_TOKEN"
)

var scheduleRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

var scheduleRule = validation.Match(scheduleRe).Error("must be HH:MM (24-hour)")

// listenAddr accepts "host:port" and ":port".
func listenAddr(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(s)
	if err != nil {
		return errors.New("must be host:port")
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return errors.New("invalid port")
	}
	return nil
}

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Feeds    FeedsConfig       `yaml:"feeds"`
	Webhook  WebhookConfig     `yaml:"webhook"`
	Schedule ScheduleConfig    `yaml:"schedule"`
	Dedup    DedupConfig       `yaml:"dedup"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.App),
		validation.Field(&c.SQLite),
		validation.Field(&c.Feeds),
		validation.Field(&c.Webhook),
		validation.Field(&c.Schedule),
		validation.Field(&c.Dedup),
	)
}

// ApplyEnv overrides secrets from the environment. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvWebhookURL); v != "" {
		c.Webhook.URL = v
	}
	if v := getenv(EnvStatusToken); v != "" {
		c.App.HTTP.Token = v
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile additionally receives every log line when set.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c ApplicationConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.HTTP),
	)
}

// HTTPConfig configures the optional status server of scheduled mode.
type HTTPConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// Enabled reports whether the status server should start.
func (c HTTPConfig) Enabled() bool {
	return c.Addr != ""
}

// Validate validates the HTTP configuration.
func (c HTTPConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.By(listenAddr)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c SQLiteConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// FeedsConfig configures collection.
type FeedsConfig struct {
	SourcesPath    string        `yaml:"sources_path"`
	KeywordsPath   string        `yaml:"keywords_path"`
	MaxAgeHours    int           `yaml:"max_age_hours"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`
	Workers        int           `yaml:"workers"`
	InsecureRetry  bool          `yaml:"insecure_retry"`
}

// Validate validates the feeds configuration.
func (c FeedsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SourcesPath, validation.Required),
		validation.Field(&c.KeywordsPath, validation.Required),
		validation.Field(&c.MaxAgeHours, validation.Required, validation.Min(1)),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// WebhookConfig configures Teams delivery. An empty URL forces preview mode.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the webhook configuration.
func (c WebhookConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, is.URL),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
	)
}

// ScheduleConfig holds the daily run time. Empty means run once.
type ScheduleConfig struct {
	At string `yaml:"at"`
}

// Validate validates the schedule configuration.
func (c ScheduleConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.At, scheduleRule),
	)
}

// DedupConfig configures the seen set.
type DedupConfig struct {
	RetentionDays int  `yaml:"retention_days"`
	NormalizeURLs bool `yaml:"normalize_urls"`
}

// Retention returns the retention window as a duration.
func (c DedupConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Validate validates the dedup configuration.
func (c DedupConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RetentionDays, validation.Required, validation.Min(1)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogFile:  "data/newsbot.log",
		},
		SQLite: SQLiteConfig{
			Path: "data/seen_articles.db",
		},
		Feeds: FeedsConfig{
			SourcesPath:    "config/sources.yaml",
			KeywordsPath:   "config/keywords.yaml",
			MaxAgeHours:    48,
			RequestTimeout: feeds.DefaultTimeout,
			UserAgent:      feeds.DefaultUserAgent,
			Workers:        feeds.DefaultWorkers,
			InsecureRetry:  true,
		},
		Webhook: WebhookConfig{
			Timeout: notify.DefaultTimeout,
		},
		Dedup: DedupConfig{
			RetentionDays: 30,
		},
	}
}
