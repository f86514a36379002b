package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/opvera/opvera-api/internal/config"
)

func TestHealthCheckReportsServiceMetadata(t *testing.T) {
	app := fiber.New()
	app.Get("/health", HealthCheck(config.Config{AppName: "opvera-api", AppEnv: "test"}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool           `json:"success"`
		Data    HealthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	require.Equal(t, "ok", body.Data.Status)
	require.Equal(t, "opvera-api", body.Data.Service)
	require.Equal(t, "test", body.Data.Environment)
}
