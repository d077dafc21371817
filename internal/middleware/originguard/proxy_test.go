package originguard

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appTestPeer is the remote address of connections made by app.Test.
const appTestPeer = "0.0.0.0"

func resolveWith(t *testing.T, header string, trusted []string, forwarded string) string {
	t.Helper()

	clientIP, err := ProxyClientIP(header, trusted)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(clientIP(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if forwarded != "" {
		req.Header.Set(forwardedFor, forwarded)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestProxyClientIP(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		trusted   []string
		forwarded string
		want      string
	}{
		{"no proxy header uses peer", "", []string{appTestPeer}, "10.0.0.7", appTestPeer},
		{"untrusted peer uses peer", forwardedFor, []string{"192.0.2.10"}, "10.0.0.7", appTestPeer},
		{"trusted peer single hop", forwardedFor, []string{appTestPeer}, "10.0.0.7", "10.0.0.7"},
		{"rightmost untrusted hop wins", forwardedFor, []string{appTestPeer}, "10.0.0.7, 203.0.113.66", "203.0.113.66"},
		{"trusted hops are skipped", forwardedFor, []string{appTestPeer, "172.16.0.0/12"}, "203.0.113.66, 10.0.0.7, 172.16.4.2", "10.0.0.7"},
		{"all hops trusted uses leftmost", forwardedFor, []string{appTestPeer, "172.16.0.0/12"}, "172.16.0.9, 172.16.4.2", "172.16.0.9"},
		{"malformed hop resolves to nothing", forwardedFor, []string{appTestPeer}, "10.0.0.evil", ""},
		{"missing header uses peer", forwardedFor, []string{appTestPeer}, "", appTestPeer},
		{"mapped hop kept as written", forwardedFor, []string{appTestPeer}, "::ffff:10.0.0.7", "::ffff:10.0.0.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveWith(t, tt.header, tt.trusted, tt.forwarded))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	networks, err := ParseTrustedProxies([]string{"10.0.0.1", " ", "::ffff:10.0.0.2", "172.16.0.0/12"})
	require.NoError(t, err)
	require.Len(t, networks, 3)
	assert.Equal(t, "10.0.0.2/32", networks[1].String())

	_, err = ParseTrustedProxies([]string{"10.0.0."})
	require.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/40"})
	require.Error(t, err)
}

func TestNew_UsesClientIPResolver(t *testing.T) {
	app := fiber.New()
	app.Use(New(Config{
		AllowedIPPrefixes: []string{"10.0.0."},
		ClientIP:          func(*fiber.Ctx) string { return "10.0.0.9" },
	}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
