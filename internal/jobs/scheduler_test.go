package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	names []string
	fail  bool
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, name string, _ interface{}) (string, error) {
	if e.fail {
		return "", errors.New("redis unavailable")
	}
	e.names = append(e.names, name)
	return "job-" + name, nil
}

func TestScheduleNext(t *testing.T) {
	// Wednesday.
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, now.Add(time.Hour), IntervalSchedule{Interval: time.Hour}.Next(now))
	require.Equal(t, time.Date(2026, 4, 2, 2, 0, 0, 0, time.UTC), DailySchedule{Hour: 2}.Next(now))
	require.Equal(t, time.Date(2026, 4, 1, 18, 30, 0, 0, time.UTC), DailySchedule{Hour: 18, Minute: 30}.Next(now))
	require.Equal(t, time.Date(2026, 4, 5, 3, 0, 0, 0, time.UTC), WeeklySchedule{Weekday: time.Sunday, Hour: 3}.Next(now))
	require.Equal(t, time.Date(2026, 4, 8, 12, 0, 0, 0, time.UTC), WeeklySchedule{Weekday: time.Wednesday, Hour: 12}.Next(now))
	require.Equal(t, "weekly on Sunday at 03:00 UTC", WeeklySchedule{Weekday: time.Sunday, Hour: 3}.String())
}

func TestSchedulerEnqueuesDueJobsOnce(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	scheduler := NewScheduler(enqueuer, zerolog.Nop())
	scheduler.now = func() time.Time { return start }

	require.NoError(t, scheduler.Register(JobScheduleReminders, IntervalSchedule{Interval: time.Hour}))
	require.NoError(t, scheduler.Register(JobDailyAnalyticsGeneration, DailySchedule{Hour: 2}))
	require.ErrorIs(t, scheduler.Register(JobScheduleReminders, IntervalSchedule{Interval: time.Minute}), ErrAlreadyScheduled)
	require.ErrorIs(t, scheduler.Register(JobWeeklyTrendAnalysis, nil), ErrNilSchedule)

	ctx := context.Background()
	require.Empty(t, scheduler.EnqueueDue(ctx, start.Add(30*time.Minute)))

	// Three missed hours still enqueue the reminder job once.
	require.Equal(t, []string{JobScheduleReminders}, scheduler.EnqueueDue(ctx, start.Add(3*time.Hour)))
	require.Equal(t, start.Add(4*time.Hour), scheduler.NextRuns()[JobScheduleReminders])

	require.ElementsMatch(t, []string{JobScheduleReminders, JobDailyAnalyticsGeneration}, scheduler.EnqueueDue(ctx, start.Add(14*time.Hour)))
	require.Equal(t, []string{JobScheduleReminders, JobScheduleReminders, JobDailyAnalyticsGeneration}, enqueuer.names)
}

func TestSchedulerKeepsSlotWhenEnqueueFails(t *testing.T) {
	enqueuer := &recordingEnqueuer{fail: true}
	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	scheduler := NewScheduler(enqueuer, zerolog.Nop())
	scheduler.now = func() time.Time { return start }
	require.NoError(t, scheduler.Register(JobEmergencyDetection, IntervalSchedule{Interval: 30 * time.Minute}))

	require.Empty(t, scheduler.EnqueueDue(context.Background(), start.Add(time.Hour)))
	require.Equal(t, start.Add(30*time.Minute), scheduler.NextRuns()[JobEmergencyDetection])

	enqueuer.fail = false
	require.Equal(t, []string{JobEmergencyDetection}, scheduler.EnqueueDue(context.Background(), start.Add(time.Hour)))
}

func TestSchedulerDefaults(t *testing.T) {
	scheduler := NewScheduler(&recordingEnqueuer{}, zerolog.Nop())
	require.NoError(t, scheduler.RegisterDefaults())

	runs := scheduler.NextRuns()
	require.Len(t, runs, 8)
	registry := NewRegistry(Services{}, Settings{}, zerolog.Nop())
	for name := range runs {
		require.True(t, registry.Has(name), name)
	}
}
