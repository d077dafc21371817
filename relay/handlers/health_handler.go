package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/qolzam/telar/apps/relay/internal/cache"
)

// HealthHandler answers liveness probes
type HealthHandler struct {
	service     string
	replayStats func() cache.CacheStats
}

// NewHealthHandler creates a new health handler. replayStats is nil when
// replay protection is disabled.
func NewHealthHandler(service string, replayStats func() cache.CacheStats) *HealthHandler {
	return &HealthHandler{service: service, replayStats: replayStats}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":           "ok",
		"service":          h.service,
		"replayProtection": h.replayStats != nil,
	}
	if h.replayStats != nil {
		body["replayCache"] = h.replayStats()
	}
	return c.JSON(body)
}
