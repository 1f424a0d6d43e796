package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
)

func TestWorkerBatchContinuesPastFailedTarget(t *testing.T) {
	queue, _ := newTestQueue(t)
	ctx := context.Background()

	predictions := &stubPredictions{failFor: map[uint]error{3: errors.New("signal store timeout")}}
	targets := make([]repository.StudentCourse, 0, 5)
	for id := uint(1); id <= 5; id++ {
		targets = append(targets, repository.StudentCourse{StudentID: id})
	}

	registry := NewRegistry(Services{Predictions: predictions}, Settings{}, zerolog.Nop())
	worker := NewWorker(queue, registry, &recordingDispatcher{}, 1, zerolog.Nop())

	id, err := queue.Enqueue(ctx, JobGenerateBatchPredictions, Payload{Targets: targets})
	require.NoError(t, err)
	envelope, err := queue.Dequeue(ctx, "worker-a", time.Second)
	require.NoError(t, err)

	summary, err := worker.Process(ctx, envelope)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Processed)
	require.Equal(t, 5, summary.Total)
	require.Equal(t, 1, summary.Failed)
	require.Len(t, predictions.generated, 4)

	failed := 0
	for _, item := range summary.Items {
		if item.Status == ItemFailed {
			failed++
			require.Equal(t, "student:3", item.Target)
			require.Equal(t, "signal store timeout", item.Error)
		}
	}
	require.Equal(t, 1, failed)

	status, err := queue.Status(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, status.Status)
	require.Equal(t, 1.0, status.Progress)
	require.Equal(t, 4, status.Summary.Processed)
	require.Equal(t, 5, status.Summary.Total)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestWorkerFailsUnknownAndBrokenJobs(t *testing.T) {
	queue, server := newTestQueue(t)
	ctx := context.Background()

	registry := NewRegistry(Services{Predictions: &stubPredictions{}}, Settings{}, zerolog.Nop())
	worker := NewWorker(queue, registry, nil, 1, zerolog.Nop())

	unknownID, err := queue.Enqueue(ctx, "rebuild-everything", nil)
	require.NoError(t, err)
	envelope, err := queue.Dequeue(ctx, "worker-a", time.Second)
	require.NoError(t, err)

	_, err = worker.Process(ctx, envelope)
	require.ErrorIs(t, err, ErrUnknownJob)
	status, err := queue.Status(ctx, unknownID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, status.Status)

	invalidID, err := queue.Enqueue(ctx, JobGenerateBatchPredictions, Payload{PredictionType: "mood"})
	require.NoError(t, err)
	envelope, err = queue.Dequeue(ctx, "worker-a", time.Second)
	require.NoError(t, err)

	_, err = worker.Process(ctx, envelope)
	require.Error(t, err)
	status, err = queue.Status(ctx, invalidID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, status.Status)
	require.Contains(t, status.Error, "unsupported prediction type")
	require.False(t, server.Exists("gema:analytics:jobs:processing:worker-a"))
}

func TestWorkerFailsPanickingJob(t *testing.T) {
	queue, server := newTestQueue(t)
	ctx := context.Background()

	registry := NewRegistry(Services{}, Settings{}, zerolog.Nop())
	registry.handlers["explode"] = func(context.Context, json.RawMessage, ProgressFunc) (Summary, error) {
		panic("signal store returned no rows")
	}
	worker := NewWorker(queue, registry, nil, 1, zerolog.Nop())

	id, err := queue.Enqueue(ctx, "explode", nil)
	require.NoError(t, err)
	envelope, err := queue.Dequeue(ctx, "worker-a", time.Second)
	require.NoError(t, err)

	_, err = worker.Process(ctx, envelope)
	require.ErrorContains(t, err, "panicked")

	status, err := queue.Status(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, status.Status)
	require.Contains(t, status.Error, "signal store returned no rows")
	require.False(t, server.Exists("gema:analytics:jobs:processing:worker-a"))
}

func TestWorkerDispatchesEmittedEvents(t *testing.T) {
	queue, _ := newTestQueue(t)
	ctx := context.Background()

	risk := &stubRisk{elevated: []models.DropoutRiskAssessment{
		{ID: 11, StudentID: 4, RiskLevel: models.RiskLevelVeryHigh, RiskProbability: 88.75},
		{ID: 12, StudentID: 5, RiskLevel: models.RiskLevelHigh, RiskProbability: 70},
	}}
	interventions := &stubInterventions{}
	dispatcher := &recordingDispatcher{}

	registry := NewRegistry(Services{Risk: risk, Interventions: interventions}, Settings{}, zerolog.Nop())
	worker := NewWorker(queue, registry, dispatcher, 1, zerolog.Nop())

	_, err := queue.Enqueue(ctx, JobEmergencyDetection, nil)
	require.NoError(t, err)
	envelope, err := queue.Dequeue(ctx, "worker-a", time.Second)
	require.NoError(t, err)

	summary, err := worker.Process(ctx, envelope)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Total)
	require.Len(t, dispatcher.alerts, 1)
	require.Equal(t, uint(4), dispatcher.alerts[0].StudentID)
	require.Equal(t, "critical", dispatcher.alerts[0].Severity)
	require.Equal(t, []uint{11}, interventions.generated)
	require.Equal(t, [2]bool{true, true}, risk.notified[11])
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	queue, _ := newTestQueue(t)
	registry := NewRegistry(Services{Predictions: &stubPredictions{}}, Settings{}, zerolog.Nop())
	worker := NewWorker(queue, registry, nil, 2, zerolog.Nop())
	worker.pollTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
