package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/observability"
	"github.com/noah-isme/gema-analytics-api/internal/service"
)

// Item statuses of a cohort run.
const (
	ItemCompleted = "completed"
	ItemSkipped   = "skipped"
	ItemFailed    = "failed"
)

// ItemResult is the outcome of one target of a cohort job.
type ItemResult struct {
	Target string `json:"target"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Summary is the result of a job run. Alerts, reminders and model events are handed to
// the dispatcher by the worker once the run finishes.
type Summary struct {
	Job         string               `json:"job"`
	Processed   int                  `json:"processed"`
	Total       int                  `json:"total"`
	Failed      int                  `json:"failed"`
	CompletedAt time.Time            `json:"completed_at"`
	Items       []ItemResult         `json:"items"`
	Alerts      []service.Alert      `json:"alerts,omitempty"`
	Reminders   []service.Reminder   `json:"reminders,omitempty"`
	ModelEvents []service.ModelEvent `json:"model_events,omitempty"`
}

// ProgressFunc receives the completed fraction of a run.
type ProgressFunc func(ctx context.Context, fraction float64)

// errSkipped lets an item step report that nothing needed doing.
type errSkipped struct{ reason string }

func (e errSkipped) Error() string { return e.reason }

func skip(format string, args ...interface{}) error {
	return errSkipped{reason: fmt.Sprintf(format, args...)}
}

// cohortRun iterates targets of one job, isolating failures per item.
type cohortRun struct {
	summary  *Summary
	total    int
	done     int
	progress ProgressFunc
	logger   zerolog.Logger
}

func newCohortRun(job string, total int, progress ProgressFunc, logger zerolog.Logger) *cohortRun {
	return &cohortRun{
		summary:  &Summary{Job: job, Total: total, Items: make([]ItemResult, 0, total)},
		total:    total,
		progress: progress,
		logger:   logger,
	}
}

// do runs one item. A returned error or a panic marks only this item failed.
func (r *cohortRun) do(ctx context.Context, target string, step func(ctx context.Context) (string, error)) {
	result := ItemResult{Target: target}

	detail, err := r.safely(ctx, step)
	switch e := err.(type) {
	case nil:
		result.Status = ItemCompleted
		result.Detail = detail
		r.summary.Processed++
	case errSkipped:
		result.Status = ItemSkipped
		result.Detail = e.reason
		r.summary.Processed++
	default:
		result.Status = ItemFailed
		result.Error = err.Error()
		r.summary.Failed++
		observability.JobItemFailures().WithLabelValues(r.summary.Job).Inc()
		r.logger.Error().Err(err).Str("job", r.summary.Job).Str("target", target).Msg("cohort item failed")
	}

	r.summary.Items = append(r.summary.Items, result)
	r.done++
	if r.progress != nil && r.total > 0 {
		r.progress(ctx, float64(r.done)/float64(r.total))
	}
}

func (r *cohortRun) safely(ctx context.Context, step func(ctx context.Context) (string, error)) (detail string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return step(ctx)
}

func (r *cohortRun) alert(alert service.Alert) {
	r.summary.Alerts = append(r.summary.Alerts, alert)
}

func (r *cohortRun) remind(reminder service.Reminder) {
	r.summary.Reminders = append(r.summary.Reminders, reminder)
}

func (r *cohortRun) modelEvent(event service.ModelEvent) {
	r.summary.ModelEvents = append(r.summary.ModelEvents, event)
}

func (r *cohortRun) finish(now time.Time) Summary {
	r.summary.CompletedAt = now.UTC()
	return *r.summary
}
