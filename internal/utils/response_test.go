package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-analytics-api/internal/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func TestSuccessResponses(t *testing.T) {
	app := fiber.New()
	app.Get("/predictions", func(c *fiber.Ctx) error {
		return utils.OK(c, []string{"p-1"}, "", map[string]int{"total": 1})
	})
	app.Post("/forecasts", func(c *fiber.Ctx) error {
		return utils.Created(c, map[string]string{"id": "f-1"}, "forecast created")
	})
	app.Post("/jobs/:name", func(c *fiber.Ctx) error {
		return utils.Accepted(c, map[string]string{"status": "queued"}, "")
	})

	status, body := perform(t, app, http.MethodGet, "/predictions")
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, body.Success)
	require.Equal(t, "success", body.Message)
	require.JSONEq(t, `{"total":1}`, string(body.Meta))

	status, body = perform(t, app, http.MethodPost, "/forecasts")
	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, "forecast created", body.Message)
	require.Empty(t, body.Meta)

	status, body = perform(t, app, http.MethodPost, "/jobs/weekly-trend-analysis")
	require.Equal(t, fiber.StatusAccepted, status)
	require.JSONEq(t, `{"status":"queued"}`, string(body.Data))
}

func TestFailDefaults(t *testing.T) {
	app := fiber.New()
	app.Get("/validation", func(c *fiber.Ctx) error {
		details := []map[string]string{{"field": "student_id", "rule": "required"}}
		return utils.Fail(c, fiber.StatusUnprocessableEntity, "validation failed", details)
	})
	app.Get("/unknown", func(c *fiber.Ctx) error {
		return utils.Fail(c, 0, "", nil)
	})

	status, body := perform(t, app, http.MethodGet, "/validation")
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.False(t, body.Success)
	require.JSONEq(t, `[{"field":"student_id","rule":"required"}]`, string(body.Details))
	require.Empty(t, body.Data)

	status, body = perform(t, app, http.MethodGet, "/unknown")
	require.Equal(t, fiber.StatusInternalServerError, status)
	require.Equal(t, "error", body.Message)
}

func perform(t *testing.T, app *fiber.App, method, path string) (int, envelope) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}
