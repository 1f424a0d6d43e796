package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/middleware"
	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/internal/service"
	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

// InterventionHandler exposes intervention recommendation endpoints.
type InterventionHandler struct {
	service service.InterventionService
	logger  zerolog.Logger
}

// NewInterventionHandler constructs an InterventionHandler.
func NewInterventionHandler(service service.InterventionService, logger zerolog.Logger) *InterventionHandler {
	return &InterventionHandler{service: service, logger: logger.With().Str("component", "intervention_handler").Logger()}
}

// Register mounts intervention routes.
func (h *InterventionHandler) Register(router fiber.Router) {
	router.Post("/interventions/generate", staffOnly, h.Generate)
	router.Get("/interventions", h.List)
	router.Get("/interventions/:id", h.Get)
	router.Post("/interventions/:id/transition", staffOnly, h.Transition)
	router.Post("/interventions/:id/assign", staffOnly, h.Assign)
}

// Generate produces recommendations from a stored assessment or prediction.
// Recommendations already open for the same student and type are reused.
func (h *InterventionHandler) Generate(c *fiber.Ctx) error {
	var payload dto.InterventionGenerateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	result, err := h.service.Generate(withRequestContext(c), payload)
	if err != nil {
		return writeError(c, h.logger, err, "generate interventions")
	}
	if result.Created == 0 {
		return utils.OK(c, result, "interventions already open", nil)
	}
	return utils.Created(c, result, "interventions generated")
}

func (h *InterventionHandler) List(c *fiber.Ctx) error {
	studentID, err := studentScope(c)
	if err == errForbidden {
		return forbidden(c)
	}
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	filter := repository.InterventionFilter{
		StudentID:        studentID,
		InterventionType: strings.TrimSpace(c.Query("intervention_type")),
		Statuses:         parseStatuses(c.Query("status")),
	}
	if filter.CourseID, err = parseQueryUint(c, "course_id"); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if filter.AssignedToID, err = parseQueryUint(c, "assigned_to_id"); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if filter.Page, filter.PageSize, err = pagination(c); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	items, meta, err := h.service.List(withRequestContext(c), filter)
	if err != nil {
		return writeError(c, h.logger, err, "list interventions")
	}
	return utils.OK(c, items, "interventions retrieved", meta)
}

func (h *InterventionHandler) Get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	intervention, err := h.service.Get(withRequestContext(c), id)
	if err != nil {
		return writeError(c, h.logger, err, "get intervention")
	}
	if !middleware.CanAccessStudent(c, intervention.StudentID) {
		return forbidden(c)
	}
	return utils.OK(c, intervention, "intervention retrieved", nil)
}

// Transition moves an intervention through its lifecycle.
func (h *InterventionHandler) Transition(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var payload dto.InterventionTransitionRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	intervention, err := h.service.Transition(withRequestContext(c), id, payload)
	if err != nil {
		return writeError(c, h.logger, err, "transition intervention")
	}
	return utils.OK(c, intervention, "intervention updated", nil)
}

func (h *InterventionHandler) Assign(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var payload dto.InterventionAssignRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	intervention, err := h.service.Assign(withRequestContext(c), id, payload)
	if err != nil {
		return writeError(c, h.logger, err, "assign intervention")
	}
	return utils.OK(c, intervention, "intervention assigned", nil)
}

func parseStatuses(raw string) []models.InterventionStatus {
	var statuses []models.InterventionStatus
	for _, part := range strings.Split(raw, ",") {
		if value := strings.ToLower(strings.TrimSpace(part)); value != "" {
			statuses = append(statuses, models.InterventionStatus(value))
		}
	}
	return statuses
}
