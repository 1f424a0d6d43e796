package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-analytics-api/internal/config"
	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

const dependencyTimeout = 2 * time.Second

// DependencyCheck checks one backing dependency.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	ModelVersion string            `json:"model_version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck returns a handler that reports application health information.
// Any failing check turns the response into a 503.
func HealthCheck(cfg config.Config, checks ...DependencyCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:       "ok",
			Timestamp:    time.Now().UTC(),
			Service:      cfg.AppName,
			Environment:  cfg.AppEnv,
			ModelVersion: cfg.ModelVersion,
		}

		if len(checks) > 0 {
			payload.Dependencies = make(map[string]string, len(checks))
		}
		for _, check := range checks {
			ctx, cancel := context.WithTimeout(c.UserContext(), dependencyTimeout)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				payload.Status = "degraded"
				payload.Dependencies[check.Name] = err.Error()
				continue
			}
			payload.Dependencies[check.Name] = "ok"
		}

		if payload.Status != "ok" {
			return utils.Fail(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.OK(c, payload, "service healthy", nil)
	}
}
