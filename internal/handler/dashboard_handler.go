package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/middleware"
	"github.com/noah-isme/gema-analytics-api/internal/service"
	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

// DashboardHandler serves the cached student and instructor dashboards.
type DashboardHandler struct {
	service service.DashboardService
	logger  zerolog.Logger
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(service service.DashboardService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{service: service, logger: logger.With().Str("component", "dashboard_handler").Logger()}
}

// Register mounts dashboard routes.
func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("/dashboard/student", middleware.WithAuth(h.Self, middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
	router.Get("/dashboard/students/:studentId", h.Student)
	router.Get("/dashboard/instructor", staffOnly, h.Instructor)
}

// Self returns the dashboard of the authenticated student.
func (h *DashboardHandler) Self(c *fiber.Ctx) error {
	return h.render(c, userIDFromContext(c))
}

func (h *DashboardHandler) Student(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if !middleware.CanAccessStudent(c, studentID) {
		return forbidden(c)
	}
	return h.render(c, studentID)
}

func (h *DashboardHandler) render(c *fiber.Ctx, studentID uint) error {
	dashboard, err := h.service.StudentDashboard(withRequestContext(c), studentID)
	if err != nil {
		return writeError(c, h.logger, err, "student dashboard")
	}
	return utils.OK(c, dashboard, "dashboard retrieved", nil)
}

// Instructor returns the risk overview of the caller. Admins may inspect another
// instructor through instructor_id.
func (h *DashboardHandler) Instructor(c *fiber.Ctx) error {
	instructorID := userIDFromContext(c)
	requested, err := parseQueryUint(c, "instructor_id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if requested != nil && *requested != instructorID {
		if normalizedRole(c) != middleware.AuthRoleAdmin {
			return forbidden(c)
		}
		instructorID = *requested
	}

	dashboard, err := h.service.InstructorDashboard(withRequestContext(c), instructorID)
	if err != nil {
		return writeError(c, h.logger, err, "instructor dashboard")
	}
	return utils.OK(c, dashboard, "dashboard retrieved", nil)
}
