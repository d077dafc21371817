package requestid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid"

	"github.com/qolzam/telar/apps/relay/internal/pkg/log"
	"github.com/qolzam/telar/apps/relay/internal/types"
)

// New creates a middleware that generates or uses an existing X-Request-ID header.
// The id is also attached to the request's user context so that
// log.*WithContext calls downstream carry it.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(types.HeaderRequestID)

		if requestID == "" {
			id, err := uuid.NewV4()
			if err != nil {
				// Fallback: generate another UUID (should never fail)
				id, _ = uuid.NewV4()
			}
			requestID = id.String()
		}

		c.SetUserContext(log.WithRequestID(c.UserContext(), requestID))

		// Set response header so client can track the request
		c.Set(types.HeaderRequestID, requestID)

		return c.Next()
	}
}
