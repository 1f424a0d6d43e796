package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/middleware"
	"github.com/noah-isme/gema-analytics-api/internal/service"
	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

// RiskHandler exposes dropout risk assessment endpoints.
type RiskHandler struct {
	service service.RiskAssessmentService
	logger  zerolog.Logger
}

// NewRiskHandler constructs a RiskHandler.
func NewRiskHandler(service service.RiskAssessmentService, logger zerolog.Logger) *RiskHandler {
	return &RiskHandler{service: service, logger: logger.With().Str("component", "risk_handler").Logger()}
}

// Register mounts risk assessment routes.
func (h *RiskHandler) Register(router fiber.Router) {
	router.Post("/risk-assessments", staffOnly, h.Assess)
	router.Get("/risk-assessments/latest", h.Latest)
	router.Get("/risk-assessments/:id", h.Get)
}

// Assess computes or refreshes today's assessment for a student.
func (h *RiskHandler) Assess(c *fiber.Ctx) error {
	var payload dto.RiskAssessmentRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	assessment, err := h.service.Assess(withRequestContext(c), payload)
	if err != nil {
		return writeError(c, h.logger, err, "assess dropout risk")
	}
	return utils.Created(c, assessment, "risk assessment recorded")
}

func (h *RiskHandler) Get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	assessment, err := h.service.Get(withRequestContext(c), id)
	if err != nil {
		return writeError(c, h.logger, err, "get risk assessment")
	}
	if !middleware.CanAccessStudent(c, assessment.StudentID) {
		return forbidden(c)
	}
	return utils.OK(c, assessment, "risk assessment retrieved", nil)
}

// Latest returns the most recent assessment of a student, optionally within a course.
func (h *RiskHandler) Latest(c *fiber.Ctx) error {
	studentID, err := studentScope(c)
	if err == errForbidden {
		return forbidden(c)
	}
	if err != nil || studentID == nil {
		return utils.Fail(c, fiber.StatusBadRequest, "student_id is required", nil)
	}

	courseID, err := parseQueryUint(c, "course_id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	assessment, err := h.service.Latest(withRequestContext(c), *studentID, courseID)
	if err != nil {
		return writeError(c, h.logger, err, "latest risk assessment")
	}
	return utils.OK(c, assessment, "risk assessment retrieved", nil)
}
