package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/newsbot/internal/apperr"
	"github.com/starford/newsbot/internal/testutil"
)

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("07:30")
	require.NoError(t, err)
	assert.Equal(t, Schedule{Hour: 7, Minute: 30}, s)
	assert.Equal(t, "07:30", s.String())

	for _, bad := range []string{"", "7am", "25:00", "12:60", "12"} {
		_, err := ParseSchedule(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidSchedule, bad)
	}
}

func TestScheduleNext(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	s := Schedule{Hour: 7, Minute: 0}

	before := time.Date(2025, 3, 10, 6, 59, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 3, 10, 7, 0, 0, 0, loc), s.Next(before))

	exactly := time.Date(2025, 3, 10, 7, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 3, 11, 7, 0, 0, 0, loc), s.Next(exactly))

	endOfMonth := time.Date(2025, 3, 31, 22, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 4, 1, 7, 0, 0, 0, loc), s.Next(endOfMonth))
}

func TestSchedulerRunsImmediatelyAndSurvivesFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	var waits []time.Duration

	s := NewScheduler(Schedule{Hour: 7}, testutil.DiscardLogger())
	s.now = func() time.Time { return now }
	s.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		ch := make(chan time.Time, 1)
		ch <- now
		return ch
	}

	runs := 0
	err := s.Start(ctx, func(context.Context) error {
		runs++
		if runs == 3 {
			cancel()
		}
		if runs == 1 {
			return errors.New("feed outage")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, runs)
	require.NotEmpty(t, waits)
	assert.Equal(t, 19*time.Hour, waits[0])
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(Schedule{Hour: 7}, testutil.DiscardLogger())
	s.after = func(time.Duration) <-chan time.Time { return make(chan time.Time) }

	done := make(chan error, 1)
	runs := 0
	go func() {
		done <- s.Start(ctx, func(context.Context) error { runs++; return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
