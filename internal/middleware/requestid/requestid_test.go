package requestid

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/qolzam/telar/apps/relay/internal/pkg/log"
	"github.com/qolzam/telar/apps/relay/internal/types"
)

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	app := fiber.New()
	app.Use(New())

	var fromContext string
	app.Get("/", func(c *fiber.Ctx) error {
		fromContext = log.RequestID(c.UserContext())
		return c.SendStatus(http.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	header := resp.Header.Get(types.HeaderRequestID)
	require.NotEmpty(t, header)
	require.Equal(t, header, fromContext)
}

func TestRequestID_KeepsIncomingHeader(t *testing.T) {
	app := fiber.New()
	app.Use(New())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(log.RequestID(c.UserContext())) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(types.HeaderRequestID, "req-123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "req-123", resp.Header.Get(types.HeaderRequestID))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "req-123", string(body))
}
