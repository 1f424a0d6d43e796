package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/internal/service"
	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

// OptimizationHandler exposes resource optimization endpoints. All routes are staff only.
type OptimizationHandler struct {
	service service.OptimizerService
	logger  zerolog.Logger
}

// NewOptimizationHandler constructs an OptimizationHandler.
func NewOptimizationHandler(service service.OptimizerService, logger zerolog.Logger) *OptimizationHandler {
	return &OptimizationHandler{service: service, logger: logger.With().Str("component", "optimization_handler").Logger()}
}

// Register mounts optimization routes.
func (h *OptimizationHandler) Register(router fiber.Router) {
	router.Post("/optimizations", staffOnly, h.Analyze)
	router.Get("/optimizations", staffOnly, h.List)
	router.Get("/optimizations/:id", staffOnly, h.Get)
	router.Post("/optimizations/:id/implement", staffOnly, h.Implement)
	router.Post("/optimizations/:id/validate", adminOnly, h.Validate)
}

// Analyze measures the efficiency of a resource and stores recommendations.
func (h *OptimizationHandler) Analyze(c *fiber.Ctx) error {
	var payload dto.OptimizationCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	optimization, err := h.service.Analyze(withRequestContext(c), payload)
	if err != nil {
		return writeError(c, h.logger, err, "analyze resource")
	}
	return utils.Created(c, optimization, "resource analyzed")
}

func (h *OptimizationHandler) List(c *fiber.Ctx) error {
	filter := repository.OptimizationFilter{ResourceType: strings.TrimSpace(c.Query("resource_type"))}

	var err error
	if filter.ResourceID, err = parseQueryUint(c, "resource_id"); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if filter.Implemented, err = parseQueryBool(c, "implemented"); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if filter.Page, filter.PageSize, err = pagination(c); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	items, meta, err := h.service.List(withRequestContext(c), filter)
	if err != nil {
		return writeError(c, h.logger, err, "list optimizations")
	}
	return utils.OK(c, items, "optimizations retrieved", meta)
}

func (h *OptimizationHandler) Get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	optimization, err := h.service.Get(withRequestContext(c), id)
	if err != nil {
		return writeError(c, h.logger, err, "get optimization")
	}
	return utils.OK(c, optimization, "optimization retrieved", nil)
}

func (h *OptimizationHandler) Implement(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var payload dto.OptimizationImplementRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	optimization, err := h.service.Implement(withRequestContext(c), id, payload)
	if err != nil {
		return writeError(c, h.logger, err, "implement optimization")
	}
	return utils.OK(c, optimization, "optimization implemented", nil)
}

// Validate re-measures an implemented resource and records the actual improvement.
func (h *OptimizationHandler) Validate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	optimization, err := h.service.Validate(withRequestContext(c), id)
	if err != nil {
		return writeError(c, h.logger, err, "validate optimization")
	}
	return utils.OK(c, optimization, "optimization validated", nil)
}
