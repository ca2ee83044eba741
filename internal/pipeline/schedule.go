package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/newsbot/internal/apperr"
)

// Schedule is a daily wall-clock time in the local zone.
type Schedule struct {
	Hour   int
	Minute int
}

// ParseSchedule parses a 24-hour "HH:MM" string.
func ParseSchedule(s string) (Schedule, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Schedule{}, fmt.Errorf("%w: %q is not HH:MM", apperr.ErrInvalidSchedule, s)
	}
	return Schedule{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (s Schedule) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// Next returns the first occurrence strictly after now, in now's location.
func (s Schedule) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, s.Hour, s.Minute, 0, 0, now.Location())
	}
	return next
}

// Scheduler runs a job once immediately and then daily at a fixed time.
type Scheduler struct {
	schedule Schedule
	logger   *slog.Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
}

// NewScheduler builds a Scheduler.
func NewScheduler(s Schedule, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: s,
		logger:   logger.With("component", "scheduler"),
		now:      time.Now,
		after:    time.After,
	}
}

// Start blocks until ctx is cancelled. Job failures never stop the loop.
func (s *Scheduler) Start(ctx context.Context, job func(context.Context) error) error {
	s.logger.Info("daily schedule active", slog.String("at", s.schedule.String()))
	s.runJob(ctx, job)

	for {
		now := s.now()
		next := s.schedule.Next(now)
		s.logger.Info("next run scheduled", slog.Time("at", next))
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-s.after(next.Sub(now)):
			s.runJob(ctx, job)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	if err := job(ctx); err != nil {
		s.logger.Error("scheduled run failed", slog.String("error", err.Error()))
	}
}
