package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/middleware"
	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/internal/service"
	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

const (
	defaultHistoryLimit = 20
	defaultAccuracyDays = 30
	maxAccuracyDays     = 365
)

// PredictionHandler exposes performance prediction endpoints.
type PredictionHandler struct {
	service service.PredictionService
	logger  zerolog.Logger
}

// NewPredictionHandler constructs a PredictionHandler.
func NewPredictionHandler(service service.PredictionService, logger zerolog.Logger) *PredictionHandler {
	return &PredictionHandler{service: service, logger: logger.With().Str("component", "prediction_handler").Logger()}
}

// Register mounts prediction routes. Static paths come before :id.
func (h *PredictionHandler) Register(router fiber.Router) {
	router.Post("/predictions", staffOnly, h.Create)
	router.Get("/predictions", h.List)
	router.Get("/predictions/history", h.History)
	router.Get("/predictions/accuracy", staffOnly, h.Accuracy)
	router.Get("/predictions/:id", h.Get)
	router.Post("/predictions/:id/validate", staffOnly, h.Validate)
}

// Create generates a prediction for a student.
func (h *PredictionHandler) Create(c *fiber.Ctx) error {
	var payload dto.PredictionCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	prediction, err := h.service.Generate(withRequestContext(c), payload)
	if err != nil {
		return writeError(c, h.logger, err, "generate prediction")
	}
	return utils.Created(c, prediction, "prediction generated")
}

// List returns predictions. Students only see their own.
func (h *PredictionHandler) List(c *fiber.Ctx) error {
	studentID, err := studentScope(c)
	if err == errForbidden {
		return forbidden(c)
	}
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	filter := repository.PredictionFilter{
		StudentID:      studentID,
		PredictionType: strings.TrimSpace(c.Query("prediction_type")),
		RiskLevel:      strings.TrimSpace(c.Query("risk_level")),
		ModelVersion:   strings.TrimSpace(c.Query("model_version")),
	}
	if filter.CourseID, err = parseQueryUint(c, "course_id"); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if filter.Validated, err = parseQueryBool(c, "validated"); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if filter.Page, filter.PageSize, err = pagination(c); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	items, meta, err := h.service.List(withRequestContext(c), filter)
	if err != nil {
		return writeError(c, h.logger, err, "list predictions")
	}
	return utils.OK(c, items, "predictions retrieved", meta)
}

// Get returns a single prediction.
func (h *PredictionHandler) Get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	prediction, err := h.service.Get(withRequestContext(c), id)
	if err != nil {
		return writeError(c, h.logger, err, "get prediction")
	}
	if !middleware.CanAccessStudent(c, prediction.StudentID) {
		return forbidden(c)
	}
	return utils.OK(c, prediction, "prediction retrieved", nil)
}

// Validate records the actual value of a prediction.
func (h *PredictionHandler) Validate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var payload dto.PredictionValidateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	prediction, err := h.service.Validate(withRequestContext(c), id, payload)
	if err != nil {
		return writeError(c, h.logger, err, "validate prediction")
	}
	return utils.OK(c, prediction, "prediction validated", nil)
}

// History returns the prediction series of a student with its trend.
func (h *PredictionHandler) History(c *fiber.Ctx) error {
	studentID, err := studentScope(c)
	if err == errForbidden {
		return forbidden(c)
	}
	if err != nil || studentID == nil {
		return utils.Fail(c, fiber.StatusBadRequest, "student_id is required", nil)
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	predictionType := models.PredictionType(strings.TrimSpace(c.Query("prediction_type")))
	if predictionType == "" {
		predictionType = models.PredictionTypePerformance
	}

	courseID, err := parseQueryUint(c, "course_id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	scope := repository.AllCourses()
	if courseID != nil {
		scope = repository.InCourse(courseID)
	}

	history, err := h.service.History(withRequestContext(c), *studentID, scope, predictionType, limit)
	if err != nil {
		return writeError(c, h.logger, err, "prediction history")
	}
	return utils.OK(c, history, "prediction history retrieved", nil)
}

// Accuracy summarizes validated predictions per model version over the last days.
func (h *PredictionHandler) Accuracy(c *fiber.Ctx) error {
	days, err := parseQueryInt(c, "days")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if days <= 0 {
		days = defaultAccuracyDays
	}
	if days > maxAccuracyDays {
		days = maxAccuracyDays
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	summaries, err := h.service.AccuracySummary(withRequestContext(c), since)
	if err != nil {
		return writeError(c, h.logger, err, "prediction accuracy")
	}
	return utils.OK(c, summaries, "prediction accuracy retrieved", fiber.Map{"days": days})
}
