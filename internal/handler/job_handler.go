package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/jobs"
	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

// JobQueue is the part of the background queue the API needs.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload interface{}) (string, error)
	Status(ctx context.Context, id string) (jobs.Status, error)
}

// JobCatalog reports which job names the worker can run.
type JobCatalog interface {
	Has(name string) bool
}

// JobHandler lets administrators trigger background jobs and poll their status.
type JobHandler struct {
	queue     JobQueue
	catalog   JobCatalog
	rateLimit fiber.Handler
	logger    zerolog.Logger
}

// NewJobHandler constructs a JobHandler. rateLimit may be nil.
func NewJobHandler(queue JobQueue, catalog JobCatalog, rateLimit fiber.Handler, logger zerolog.Logger) *JobHandler {
	return &JobHandler{
		queue:     queue,
		catalog:   catalog,
		rateLimit: rateLimit,
		logger:    logger.With().Str("component", "job_handler").Logger(),
	}
}

// Register mounts job routes.
func (h *JobHandler) Register(router fiber.Router) {
	trigger := []fiber.Handler{adminOnly}
	if h.rateLimit != nil {
		trigger = append(trigger, h.rateLimit)
	}
	router.Post("/jobs/:name", append(trigger, h.Trigger)...)
	router.Get("/jobs/:id", adminOnly, h.Status)
}

// Trigger enqueues a job run and returns its id.
func (h *JobHandler) Trigger(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Params("name"))
	if !h.catalog.Has(name) {
		return writeError(c, h.logger, jobs.ErrUnknownJob, "trigger job")
	}

	var payload jobs.Payload
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	id, err := h.queue.Enqueue(withRequestContext(c), name, payload)
	if err != nil {
		return writeError(c, h.logger, err, "trigger job")
	}

	requestLogger(h.logger, c).Info().Str("job", name).Str("job_id", id).Uint("user_id", userIDFromContext(c)).Msg("job enqueued")
	return utils.Accepted(c, fiber.Map{"id": id, "name": name, "status": jobs.StatusQueued}, "job enqueued")
}

// Status returns the progress or result of a job run.
func (h *JobHandler) Status(c *fiber.Ctx) error {
	status, err := h.queue.Status(withRequestContext(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err, "job status")
	}
	return utils.OK(c, status, "job status retrieved", nil)
}
