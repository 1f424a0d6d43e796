package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/jobs"
	"github.com/noah-isme/gema-analytics-api/internal/middleware"
	"github.com/noah-isme/gema-analytics-api/internal/service"
	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

var staffOnly = middleware.RequireStaff()

var adminOnly = middleware.RequireRole(middleware.AuthRoleAdmin)

type errorMapping struct {
	target  error
	status  int
	message string
}

var serviceErrors = []errorMapping{
	{service.ErrPredictionNotFound, fiber.StatusNotFound, "prediction not found"},
	{service.ErrRiskAssessmentNotFound, fiber.StatusNotFound, "risk assessment not found"},
	{service.ErrForecastNotFound, fiber.StatusNotFound, "forecast not found"},
	{service.ErrInterventionNotFound, fiber.StatusNotFound, "intervention not found"},
	{service.ErrOptimizationNotFound, fiber.StatusNotFound, "optimization not found"},
	{jobs.ErrJobNotFound, fiber.StatusNotFound, "job not found"},
	{service.ErrPredictionAlreadyValidated, fiber.StatusConflict, "prediction already validated"},
	{service.ErrForecastAlreadyRealized, fiber.StatusConflict, "forecast already realized"},
	{service.ErrOptimizationAlreadyImplemented, fiber.StatusConflict, "optimization already implemented"},
	{service.ErrInterventionClosed, fiber.StatusConflict, "intervention is closed"},
	{service.ErrInvalidTransition, fiber.StatusConflict, ""},
	{service.ErrForecastNotDue, fiber.StatusUnprocessableEntity, "forecast target date has not passed"},
	{service.ErrForecastTargetInPast, fiber.StatusUnprocessableEntity, "forecast target date must be in the future"},
	{service.ErrOptimizationNotImplemented, fiber.StatusUnprocessableEntity, "optimization has not been implemented"},
	{service.ErrInterventionOutcomeRequired, fiber.StatusUnprocessableEntity, "outcome and effectiveness score are required"},
	{service.ErrUnsupportedPredictionType, fiber.StatusBadRequest, ""},
	{service.ErrUnsupportedOutcomeType, fiber.StatusBadRequest, ""},
	{service.ErrUnsupportedResourceType, fiber.StatusBadRequest, ""},
	{jobs.ErrUnknownJob, fiber.StatusBadRequest, ""},
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// writeError maps engine errors to HTTP responses and logs everything it cannot classify.
func writeError(c *fiber.Ctx, logger zerolog.Logger, err error, action string) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.Fail(c, fiber.StatusUnprocessableEntity, "validation failed", fieldErrors(validationErrors))
	}

	for _, mapping := range serviceErrors {
		if errors.Is(err, mapping.target) {
			message := mapping.message
			if message == "" {
				message = err.Error()
			}
			return utils.Fail(c, mapping.status, message, nil)
		}
	}

	requestLogger(logger, c).Error().Err(err).Msg(action + " failed")
	return utils.Fail(c, fiber.StatusInternalServerError, "internal server error", nil)
}

func fieldErrors(errs validator.ValidationErrors) []FieldError {
	details := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		details = append(details, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return details
}

func parseBody(c *fiber.Ctx, target interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(target); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body", nil)
	}
	return nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return parsed, nil
}

func parseQueryUint(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return nil, fmt.Errorf("invalid %s", key)
	}
	id := uint(parsed)
	return &id, nil
}

func parseQueryBool(c *fiber.Ctx, key string) (*bool, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &parsed, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func pagination(c *fiber.Ctx) (int, int, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

// studentScope restricts a student caller to their own id. Staff may pass any student_id.
func studentScope(c *fiber.Ctx) (*uint, error) {
	requested, err := parseQueryUint(c, "student_id")
	if err != nil {
		return nil, err
	}
	if middleware.IsStaff(c) {
		return requested, nil
	}

	self := userIDFromContext(c)
	if self == 0 || (requested != nil && *requested != self) {
		return nil, errForbidden
	}
	return &self, nil
}

var errForbidden = errors.New("insufficient permissions")

func forbidden(c *fiber.Ctx) error {
	return utils.Fail(c, fiber.StatusForbidden, errForbidden.Error(), nil)
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func normalizedRole(c *fiber.Ctx) string {
	role, _ := c.Locals("user_role").(string)
	return strings.ToLower(strings.TrimSpace(role))
}
