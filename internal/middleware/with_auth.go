package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

// Roles understood by the analytics API. AuthRoleStaff matches admins and teachers.
const (
	AuthRoleAny     = "any"
	AuthRoleStaff   = "staff"
	AuthRoleAdmin   = "admin"
	AuthRoleTeacher = "teacher"
	AuthRoleStudent = "student"
)

// AuthOptions configures WithAuth.
type AuthOptions struct {
	Role           string
	AllowAnonymous bool
}

// WithAuth guards a single handler. Callers without a user id get a 401 unless
// AllowAnonymous is set; authenticated callers outside Role get a 403.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(uint)
		if userID == 0 {
			if opts.AllowAnonymous && role == AuthRoleAny {
				return handler(c)
			}
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		if !roleMatches(role, normalizeRoleValue(c.Locals("user_role"))) {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}
		return handler(c)
	}
}

func roleMatches(required, current string) bool {
	switch required {
	case AuthRoleAny:
		return true
	case AuthRoleStaff:
		return isStaffRole(current)
	default:
		return current == required
	}
}

// IsStaff reports whether the authenticated user is an admin or a teacher.
func IsStaff(c *fiber.Ctx) bool {
	return isStaffRole(normalizeRoleValue(c.Locals("user_role")))
}

// CanAccessStudent reports whether the caller may read the records of studentID.
// Staff may read every student; students only themselves.
func CanAccessStudent(c *fiber.Ctx, studentID uint) bool {
	if IsStaff(c) {
		return true
	}
	userID, ok := c.Locals("user_id").(uint)
	return ok && userID == studentID
}

func isStaffRole(role string) bool {
	return role == AuthRoleAdmin || role == AuthRoleTeacher
}
