package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fulfillment-service/internal/persistence"
)

// HealthHandler reports process and dependency health.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    *persistence.Postgres
	redis       *persistence.Redis
}

// NewHealthHandler constructs handler.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, postgres: postgres, redis: redis}
}

// Check GET /health.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := http.StatusOK
	deps := fiber.Map{"postgres": "up", "redis": "up"}

	if err := h.postgres.Ping(c.Context()); err != nil {
		deps["postgres"] = "down"
		status = http.StatusServiceUnavailable
	}
	if err := h.redis.Ping(c.Context()); err != nil {
		deps["redis"] = "down"
		status = http.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"service":      h.serviceName,
		"version":      h.version,
		"dependencies": deps,
	})
}
