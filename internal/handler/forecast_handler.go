package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/middleware"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/internal/service"
	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

// ForecastHandler exposes learning outcome forecast endpoints.
type ForecastHandler struct {
	service service.ForecastService
	logger  zerolog.Logger
}

// NewForecastHandler constructs a ForecastHandler.
func NewForecastHandler(service service.ForecastService, logger zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{service: service, logger: logger.With().Str("component", "forecast_handler").Logger()}
}

// Register mounts forecast routes.
func (h *ForecastHandler) Register(router fiber.Router) {
	router.Post("/forecasts", staffOnly, h.Create)
	router.Get("/forecasts", h.List)
	router.Get("/forecasts/:id", h.Get)
	router.Post("/forecasts/:id/validate", staffOnly, h.Validate)
}

func (h *ForecastHandler) Create(c *fiber.Ctx) error {
	var payload dto.ForecastCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	forecast, err := h.service.Generate(withRequestContext(c), payload)
	if err != nil {
		return writeError(c, h.logger, err, "generate forecast")
	}
	return utils.Created(c, forecast, "forecast generated")
}

func (h *ForecastHandler) List(c *fiber.Ctx) error {
	studentID, err := studentScope(c)
	if err == errForbidden {
		return forbidden(c)
	}
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	filter := repository.ForecastFilter{
		StudentID:   studentID,
		OutcomeType: strings.TrimSpace(c.Query("outcome_type")),
	}
	if filter.CourseID, err = parseQueryUint(c, "course_id"); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if filter.Realized, err = parseQueryBool(c, "realized"); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if filter.Page, filter.PageSize, err = pagination(c); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	items, meta, err := h.service.List(withRequestContext(c), filter)
	if err != nil {
		return writeError(c, h.logger, err, "list forecasts")
	}
	return utils.OK(c, items, "forecasts retrieved", meta)
}

func (h *ForecastHandler) Get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	forecast, err := h.service.Get(withRequestContext(c), id)
	if err != nil {
		return writeError(c, h.logger, err, "get forecast")
	}
	if !middleware.CanAccessStudent(c, forecast.StudentID) {
		return forbidden(c)
	}
	return utils.OK(c, forecast, "forecast retrieved", nil)
}

// Validate records the realized outcome once the target date has passed.
func (h *ForecastHandler) Validate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var payload dto.ForecastValidateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	forecast, err := h.service.Validate(withRequestContext(c), id, payload)
	if err != nil {
		return writeError(c, h.logger, err, "validate forecast")
	}
	return utils.OK(c, forecast, "forecast validated", nil)
}
