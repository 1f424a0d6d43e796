package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNilSchedule is returned when registering a job without a schedule.
	ErrNilSchedule = errors.New("schedule cannot be nil")
	// ErrAlreadyScheduled is returned when a job name is registered twice.
	ErrAlreadyScheduled = errors.New("job already scheduled")
)

const defaultSchedulerTick = 30 * time.Second

// Schedule decides when a job runs next.
type Schedule interface {
	// Next returns the first run time strictly after t.
	Next(t time.Time) time.Time
	String() string
}

// IntervalSchedule runs a job every Interval.
type IntervalSchedule struct {
	Interval time.Duration
}

func (s IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s IntervalSchedule) String() string {
	return "every " + s.Interval.String()
}

// DailySchedule runs a job once a day at Hour:Minute UTC.
type DailySchedule struct {
	Hour   int
	Minute int
}

func (s DailySchedule) Next(t time.Time) time.Time {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s DailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d UTC", s.Hour, s.Minute)
}

// WeeklySchedule runs a job once a week on Weekday at Hour:Minute UTC.
type WeeklySchedule struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

func (s WeeklySchedule) Next(t time.Time) time.Time {
	t = t.UTC()
	days := (int(s.Weekday) - int(t.Weekday()) + 7) % 7
	next := time.Date(t.Year(), t.Month(), t.Day()+days, s.Hour, s.Minute, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s WeeklySchedule) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d UTC", s.Weekday, s.Hour, s.Minute)
}

// Enqueuer accepts named jobs. *Queue implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload interface{}) (string, error)
}

type scheduledJob struct {
	name     string
	schedule Schedule
	nextRun  time.Time
}

// Scheduler enqueues jobs when their schedule is due. It never runs jobs itself.
type Scheduler struct {
	mu       sync.Mutex
	enqueuer Enqueuer
	jobs     []*scheduledJob
	tick     time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewScheduler builds an empty scheduler feeding enqueuer.
func NewScheduler(enqueuer Enqueuer, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		enqueuer: enqueuer,
		tick:     defaultSchedulerTick,
		logger:   logger.With().Str("component", "job_scheduler").Logger(),
		now:      time.Now,
	}
}

// Register adds a job with its schedule. The first run is the schedule's next slot after now.
func (s *Scheduler) Register(name string, schedule Schedule) error {
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.name == name {
			return fmt.Errorf("%w: %s", ErrAlreadyScheduled, name)
		}
	}

	job := &scheduledJob{name: name, schedule: schedule, nextRun: schedule.Next(s.now().UTC())}
	s.jobs = append(s.jobs, job)
	s.logger.Info().
		Str("job", name).
		Str("schedule", schedule.String()).
		Time("next_run", job.nextRun).
		Msg("job scheduled")
	return nil
}

// RegisterDefaults installs the analytics schedule: the daily generation, the periodic monitors
// and the weekly model and trend reviews.
func (s *Scheduler) RegisterDefaults() error {
	defaults := []struct {
		name     string
		schedule Schedule
	}{
		{JobDailyAnalyticsGeneration, DailySchedule{Hour: 2}},
		{JobUpdatePredictionAccuracies, IntervalSchedule{Interval: 6 * time.Hour}},
		{JobMonitorHighRiskStudents, IntervalSchedule{Interval: 4 * time.Hour}},
		{JobScheduleReminders, IntervalSchedule{Interval: time.Hour}},
		{JobEmergencyDetection, IntervalSchedule{Interval: 30 * time.Minute}},
		{JobWeeklyTrendAnalysis, WeeklySchedule{Weekday: time.Sunday, Hour: 3}},
		{JobModelAccuracyValidation, WeeklySchedule{Weekday: time.Sunday, Hour: 4}},
		{JobPredictiveModelRetraining, WeeklySchedule{Weekday: time.Sunday, Hour: 5}},
	}
	for _, entry := range defaults {
		if err := s.Register(entry.name, entry.schedule); err != nil {
			return err
		}
	}
	return nil
}

// Run checks the schedule every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
			s.EnqueueDue(ctx, s.now())
		}
	}
}

// EnqueueDue enqueues every job whose next run is at or before now and returns their names.
// A missed window enqueues the job once, not once per missed slot.
func (s *Scheduler) EnqueueDue(ctx context.Context, now time.Time) []string {
	now = now.UTC()

	s.mu.Lock()
	due := make([]*scheduledJob, 0)
	for _, job := range s.jobs {
		if !job.nextRun.After(now) {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	enqueued := make([]string, 0, len(due))
	for _, job := range due {
		id, err := s.enqueuer.Enqueue(ctx, job.name, nil)
		if err != nil {
			// Keep nextRun so the next tick retries.
			s.logger.Error().Err(err).Str("job", job.name).Msg("failed to enqueue scheduled job")
			continue
		}

		s.mu.Lock()
		job.nextRun = job.schedule.Next(now)
		next := job.nextRun
		s.mu.Unlock()

		s.logger.Info().Str("job", job.name).Str("job_id", id).Time("next_run", next).Msg("scheduled job enqueued")
		enqueued = append(enqueued, job.name)
	}
	return enqueued
}

// NextRuns reports the next run of each scheduled job.
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make(map[string]time.Time, len(s.jobs))
	for _, job := range s.jobs {
		runs[job.name] = job.nextRun
	}
	return runs
}
