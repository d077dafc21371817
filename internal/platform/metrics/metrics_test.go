package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const outcomeSent = "SENT"

func TestMiddlewareCountsRequests(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	app.Get("/teapot", func(c *fiber.Ctx) error { return fiber.NewError(http.StatusTeapot, "short and stout") })

	for i := 0; i < 2; i++ {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
		require.NoError(t, err)
	}
	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/teapot", nil))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestCounter.WithLabelValues(http.MethodGet, "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCounter.WithLabelValues(http.MethodGet, "/teapot", "418")))
}

func TestObserveOutcome(t *testing.T) {
	m := New()
	m.ObserveOutcome(outcomeSent)
	m.ObserveOutcome("EXPIRED")
	m.ObserveOutcome("EXPIRED")
	m.ObserveSend(20 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayOutcomes.WithLabelValues(outcomeSent)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.relayOutcomes.WithLabelValues("EXPIRED")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.sendDuration))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveOutcome(outcomeSent)

	app := fiber.New()
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `relay_outcomes_total{code="SENT"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
