package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-analytics-api/internal/observability"
	"github.com/noah-isme/gema-analytics-api/internal/service"
)

const (
	defaultPollTimeout = 5 * time.Second
	dequeueBackoff     = time.Second
)

// Worker pulls jobs from the queue and runs them on a fixed number of goroutines.
type Worker struct {
	queue       *Queue
	registry    *Registry
	dispatcher  service.AlertDispatcher
	concurrency int
	consumer    string
	pollTimeout time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewWorker builds a worker pool of the given size.
func NewWorker(queue *Queue, registry *Registry, dispatcher service.AlertDispatcher, concurrency int, logger zerolog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	consumer := consumerID()
	return &Worker{
		queue:       queue,
		registry:    registry,
		dispatcher:  dispatcher,
		concurrency: concurrency,
		consumer:    consumer,
		pollTimeout: defaultPollTimeout,
		logger:      logger.With().Str("component", "job_worker").Str("consumer", consumer).Logger(),
		now:         time.Now,
	}
}

func consumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Run processes jobs until ctx is cancelled. Jobs held by consumers that stopped heartbeating
// are requeued first; jobs of live consumers are left to them.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.queue.Join(ctx, w.consumer); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() {
		moved, err := w.queue.Leave(context.WithoutCancel(ctx), w.consumer)
		if err != nil {
			w.logger.Error().Err(err).Msg("failed to leave job queue")
		} else if moved > 0 {
			w.logger.Warn().Int("jobs", moved).Msg("handed unfinished jobs back to the queue")
		}
	}()

	recovered, err := w.queue.Recover(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if recovered > 0 {
		w.logger.Warn().Int("jobs", recovered).Msg("requeued jobs of lapsed consumers")
	}

	w.logger.Info().Int("concurrency", w.concurrency).Msg("job worker started")

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		w.heartbeat(ctx)
		return nil
	})
	for i := 0; i < w.concurrency; i++ {
		slot := i
		group.Go(func() error {
			w.loop(ctx, slot)
			return nil
		})
	}
	err = group.Wait()

	w.logger.Info().Msg("job worker stopped")
	return err
}

// heartbeat keeps the consumer lease alive at a third of its TTL.
func (w *Worker) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(w.queue.ConsumerTTL() / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.Heartbeat(ctx, w.consumer); err != nil && ctx.Err() == nil {
				w.logger.Warn().Err(err).Msg("consumer heartbeat failed")
			}
		}
	}
}

func (w *Worker) loop(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		envelope, err := w.queue.Dequeue(ctx, w.consumer, w.pollTimeout)
		if errors.Is(err, ErrQueueEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Int("slot", slot).Msg("dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueBackoff):
			}
			continue
		}

		// Finish the current job even when shutdown starts midway.
		_, _ = w.Process(context.WithoutCancel(ctx), envelope)
	}
}

// Process runs one dequeued job, stores its outcome, dispatches its events and acks it.
func (w *Worker) Process(ctx context.Context, envelope Envelope) (Summary, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-analytics-api/internal/jobs")
	ctx, span := tracer.Start(ctx, "jobs.process")
	span.SetAttributes(
		attribute.String("job.id", envelope.ID),
		attribute.String("job.name", envelope.Name),
	)
	defer span.End()

	logger := w.logger.With().Str("job", envelope.Name).Str("job_id", envelope.ID).Logger()
	defer func() {
		if err := w.queue.Ack(ctx, envelope); err != nil {
			logger.Error().Err(err).Msg("ack failed")
		}
	}()

	handler, err := w.registry.Lookup(envelope.Name)
	if err != nil {
		w.fail(ctx, logger, envelope, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	if err := w.queue.MarkRunning(ctx, envelope.ID); err != nil {
		logger.Warn().Err(err).Msg("failed to mark job running")
	}

	started := w.now()
	progress := func(ctx context.Context, fraction float64) {
		if err := w.queue.SetProgress(ctx, envelope.ID, fraction); err != nil {
			logger.Warn().Err(err).Float64("progress", fraction).Msg("failed to store job progress")
		}
	}

	summary, err := runHandler(ctx, handler, envelope, progress)
	observability.JobDuration().WithLabelValues(envelope.Name).Observe(w.now().Sub(started).Seconds())
	if err != nil {
		w.fail(ctx, logger, envelope, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	observability.JobRuns().WithLabelValues(envelope.Name, StatusCompleted).Inc()
	span.SetAttributes(
		attribute.Int("job.processed", summary.Processed),
		attribute.Int("job.total", summary.Total),
		attribute.Int("job.failed", summary.Failed),
	)

	if err := w.queue.Complete(ctx, envelope.ID, summary); err != nil {
		logger.Error().Err(err).Msg("failed to store job summary")
	}
	w.dispatch(ctx, logger, summary)

	logger.Info().
		Int("processed", summary.Processed).
		Int("total", summary.Total).
		Int("failed", summary.Failed).
		Int("alerts", len(summary.Alerts)).
		Int("reminders", len(summary.Reminders)).
		Msg("job completed")

	return summary, nil
}

// runHandler turns a handler panic into a job failure so the slot keeps running.
func runHandler(ctx context.Context, handler HandlerFunc, envelope Envelope, progress ProgressFunc) (summary Summary, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("job %s panicked: %v", envelope.Name, recovered)
		}
	}()
	return handler(ctx, envelope.Payload, progress)
}

func (w *Worker) fail(ctx context.Context, logger zerolog.Logger, envelope Envelope, cause error) {
	observability.JobRuns().WithLabelValues(envelope.Name, StatusFailed).Inc()
	logger.Error().Err(cause).Msg("job failed")
	if err := w.queue.Fail(ctx, envelope.ID, cause); err != nil {
		logger.Error().Err(err).Msg("failed to store job failure")
	}
}

// dispatch hands the run's events to the notification collaborator. Delivery errors never fail the job.
func (w *Worker) dispatch(ctx context.Context, logger zerolog.Logger, summary Summary) {
	if w.dispatcher == nil {
		return
	}
	for _, alert := range summary.Alerts {
		if err := w.dispatcher.PublishAlert(ctx, alert); err != nil {
			logger.Warn().Err(err).Str("kind", alert.Kind).Uint("student_id", alert.StudentID).Msg("alert dispatch failed")
		}
	}
	for _, reminder := range summary.Reminders {
		if err := w.dispatcher.PublishReminder(ctx, reminder); err != nil {
			logger.Warn().Err(err).Uint("intervention_id", reminder.InterventionID).Msg("reminder dispatch failed")
		}
	}
	for _, event := range summary.ModelEvents {
		if err := w.dispatcher.PublishModelEvent(ctx, event); err != nil {
			logger.Warn().Err(err).Str("model_version", event.ModelVersion).Msg("model event dispatch failed")
		}
	}
}
