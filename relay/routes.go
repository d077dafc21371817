package relay

import (
	"github.com/gofiber/fiber/v2"

	platformconfig "github.com/qolzam/telar/apps/relay/internal/platform/config"
	"github.com/qolzam/telar/apps/relay/relay/handlers"
)

// RelayHandlers holds all the handlers this router needs.
type RelayHandlers struct {
	RelayHandler  *handlers.RelayHandler
	HealthHandler *handlers.HealthHandler
}

// RegisterRoutes is the single entry point for setting up relay routes.
// The send endpoint lives under the configured base route; /health stays at
// the root for probes.
func RegisterRoutes(app *fiber.App, handlers *RelayHandlers, cfg *platformconfig.Config) {
	app.Get("/health", handlers.HealthHandler.Health)

	group := app.Group(cfg.Server.BaseRoute)
	group.Post("/send-email", handlers.RelayHandler.SendEmail)
}
