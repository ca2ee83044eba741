package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	dryRun    bool
	statsOnly bool
	verbose   bool
	schedule  string
	daily     bool
	maxAge    int
	httpAddr  string
	stdout    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithDryRun runs the pipeline in preview mode: nothing is sent or marked.
func WithDryRun(enabled bool) Option {
	return func(a *application) {
		a.dryRun = enabled
	}
}

// WithStatsOnly prints seen-set statistics instead of running the pipeline.
func WithStatsOnly(enabled bool) Option {
	return func(a *application) {
		a.statsOnly = enabled
	}
}

// WithVerbose forces debug logging.
func WithVerbose(enabled bool) Option {
	return func(a *application) {
		a.verbose = enabled
	}
}

// WithSchedule overrides schedule.at from the config file.
func WithSchedule(at string) Option {
	return func(a *application) {
		a.schedule = at
	}
}

// WithDaily enables scheduled mode at DefaultScheduleAt unless WithSchedule names a time.
func WithDaily(enabled bool) Option {
	return func(a *application) {
		a.daily = enabled
	}
}

// WithMaxAge overrides feeds.max_age_hours when positive.
func WithMaxAge(hours int) Option {
	return func(a *application) {
		a.maxAge = hours
	}
}

// WithHTTPAddr overrides app.http.addr.
func WithHTTPAddr(addr string) Option {
	return func(a *application) {
		a.httpAddr = addr
	}
}

// WithOutput sets where the stats report and the preview digest are written.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}
