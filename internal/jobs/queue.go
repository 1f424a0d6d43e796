package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrQueueEmpty is returned by Dequeue when no job arrived before the timeout.
	ErrQueueEmpty = errors.New("job queue empty")
	// ErrJobNotFound indicates no progress record exists for the job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrUnknownJob indicates the job name has no registered handler.
	ErrUnknownJob = errors.New("unknown job")
)

// Job statuses stored in the progress hash.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	statusRetention    = 7 * 24 * time.Hour
	defaultConsumerTTL = 30 * time.Second
)

// Envelope is one queued unit of work.
type Envelope struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`

	raw      string
	consumer string
}

// Status is the progress record of a job.
type Status struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Progress    float64    `json:"progress"`
	Error       string     `json:"error,omitempty"`
	Summary     *Summary   `json:"summary,omitempty"`
	EnqueuedAt  *time.Time `json:"enqueued_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Queue is a durable job queue on Redis lists. Each consumer moves the jobs it dequeues into
// its own processing list, where they stay until acked. A consumer keeps a heartbeat key alive
// while it runs; Recover only requeues the lists of consumers whose heartbeat has lapsed.
type Queue struct {
	client      *redis.Client
	pending     string
	processing  string
	consumers   string
	heartbeat   string
	prefix      string
	consumerTTL time.Duration
	now         func() time.Time
}

// NewQueue builds a queue stored below the given key name.
func NewQueue(client *redis.Client, name string) *Queue {
	return &Queue{
		client:      client,
		pending:     name + ":pending",
		processing:  name + ":processing:",
		consumers:   name + ":consumers",
		heartbeat:   name + ":consumer:",
		prefix:      name + ":job:",
		consumerTTL: defaultConsumerTTL,
		now:         time.Now,
	}
}

// ConsumerTTL is how long a consumer counts as alive after its last heartbeat.
func (q *Queue) ConsumerTTL() time.Duration {
	return q.consumerTTL
}

// Join registers a consumer and starts its heartbeat.
func (q *Queue) Join(ctx context.Context, consumer string) error {
	pipe := q.client.TxPipeline()
	pipe.SAdd(ctx, q.consumers, consumer)
	pipe.Set(ctx, q.heartbeat+consumer, q.now().UTC().Format(time.RFC3339Nano), q.consumerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("join queue as %s: %w", consumer, err)
	}
	return nil
}

// Heartbeat extends the lease of a live consumer.
func (q *Queue) Heartbeat(ctx context.Context, consumer string) error {
	return q.client.Set(ctx, q.heartbeat+consumer, q.now().UTC().Format(time.RFC3339Nano), q.consumerTTL).Err()
}

// Leave hands any unacked job of the consumer back to pending and unregisters it.
func (q *Queue) Leave(ctx context.Context, consumer string) (int, error) {
	moved, err := q.requeue(ctx, consumer)
	if err != nil {
		return moved, err
	}
	pipe := q.client.TxPipeline()
	pipe.SRem(ctx, q.consumers, consumer)
	pipe.Del(ctx, q.heartbeat+consumer)
	if _, err := pipe.Exec(ctx); err != nil {
		return moved, fmt.Errorf("leave queue as %s: %w", consumer, err)
	}
	return moved, nil
}

// Enqueue appends a job and records it as queued. It returns the job id.
func (q *Queue) Enqueue(ctx context.Context, name string, payload interface{}) (string, error) {
	envelope := Envelope{
		ID:         uuid.NewString(),
		Name:       name,
		EnqueuedAt: q.now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}
		envelope.Payload = raw
	}

	encoded, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}

	key := q.statusKey(envelope.ID)
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":          envelope.ID,
		"name":        name,
		"status":      StatusQueued,
		"progress":    "0",
		"enqueued_at": envelope.EnqueuedAt.Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, statusRetention)
	pipe.LPush(ctx, q.pending, encoded)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", name, err)
	}

	return envelope.ID, nil
}

// Dequeue moves the oldest pending job into the consumer's processing list, waiting up to timeout.
// A job that cannot be decoded is dropped from the processing list; a failure to drop it is
// reported together with the decode error.
func (q *Queue) Dequeue(ctx context.Context, consumer string, timeout time.Duration) (Envelope, error) {
	processing := q.processingKey(consumer)
	raw, err := q.client.BLMove(ctx, q.pending, processing, "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return Envelope{}, ErrQueueEmpty
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("dequeue: %w", err)
	}

	var envelope Envelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		decodeErr := fmt.Errorf("decode job: %w", err)
		if remErr := q.client.LRem(ctx, processing, 1, raw).Err(); remErr != nil {
			return Envelope{}, errors.Join(decodeErr, fmt.Errorf("drop malformed job: %w", remErr))
		}
		return Envelope{}, decodeErr
	}
	envelope.raw = raw
	envelope.consumer = consumer
	return envelope, nil
}

// Ack removes a finished job from the processing list of the consumer that dequeued it.
func (q *Queue) Ack(ctx context.Context, envelope Envelope) error {
	if envelope.raw == "" {
		return nil
	}
	return q.client.LRem(ctx, q.processingKey(envelope.consumer), 1, envelope.raw).Err()
}

// Recover requeues the jobs held by consumers whose heartbeat has lapsed. Jobs of live
// consumers are left alone.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	members, err := q.client.SMembers(ctx, q.consumers).Result()
	if err != nil {
		return 0, fmt.Errorf("list consumers: %w", err)
	}

	moved := 0
	for _, consumer := range members {
		alive, err := q.client.Exists(ctx, q.heartbeat+consumer).Result()
		if err != nil {
			return moved, fmt.Errorf("check consumer %s: %w", consumer, err)
		}
		if alive > 0 {
			continue
		}

		n, err := q.requeue(ctx, consumer)
		moved += n
		if err != nil {
			return moved, err
		}
		if err := q.client.SRem(ctx, q.consumers, consumer).Err(); err != nil {
			return moved, fmt.Errorf("drop consumer %s: %w", consumer, err)
		}
	}
	return moved, nil
}

func (q *Queue) requeue(ctx context.Context, consumer string) (int, error) {
	moved := 0
	for {
		_, err := q.client.LMove(ctx, q.processingKey(consumer), q.pending, "LEFT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("requeue jobs of %s: %w", consumer, err)
		}
		moved++
	}
}

func (q *Queue) processingKey(consumer string) string {
	return q.processing + consumer
}

// Pending returns the number of jobs waiting to be picked up.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.pending).Result()
}

// MarkRunning records that a worker started the job.
func (q *Queue) MarkRunning(ctx context.Context, id string) error {
	return q.client.HSet(ctx, q.statusKey(id), "status", StatusRunning).Err()
}

// SetProgress stores the completed fraction of a running job.
func (q *Queue) SetProgress(ctx context.Context, id string, fraction float64) error {
	return q.client.HSet(ctx, q.statusKey(id), "progress", strconv.FormatFloat(fraction, 'f', 4, 64)).Err()
}

// Complete stores the final summary of a job.
func (q *Queue) Complete(ctx context.Context, id string, summary Summary) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return q.client.HSet(ctx, q.statusKey(id), map[string]interface{}{
		"status":       StatusCompleted,
		"progress":     "1",
		"summary":      string(encoded),
		"completed_at": summary.CompletedAt.Format(time.RFC3339Nano),
	}).Err()
}

// Fail stores the error that aborted a job.
func (q *Queue) Fail(ctx context.Context, id string, cause error) error {
	return q.client.HSet(ctx, q.statusKey(id), map[string]interface{}{
		"status":       StatusFailed,
		"error":        cause.Error(),
		"completed_at": q.now().UTC().Format(time.RFC3339Nano),
	}).Err()
}

// Status reads the progress record of a job.
func (q *Queue) Status(ctx context.Context, id string) (Status, error) {
	values, err := q.client.HGetAll(ctx, q.statusKey(id)).Result()
	if err != nil {
		return Status{}, fmt.Errorf("read job status: %w", err)
	}
	if len(values) == 0 {
		return Status{}, ErrJobNotFound
	}

	status := Status{
		ID:     values["id"],
		Name:   values["name"],
		Status: values["status"],
		Error:  values["error"],
	}
	if progress, err := strconv.ParseFloat(values["progress"], 64); err == nil {
		status.Progress = progress
	}
	if ts, err := time.Parse(time.RFC3339Nano, values["enqueued_at"]); err == nil {
		status.EnqueuedAt = &ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, values["completed_at"]); err == nil {
		status.CompletedAt = &ts
	}
	if raw := values["summary"]; raw != "" {
		var summary Summary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			return Status{}, fmt.Errorf("decode job summary: %w", err)
		}
		status.Summary = &summary
	}

	return status, nil
}

func (q *Queue) statusKey(id string) string {
	return q.prefix + id
}
