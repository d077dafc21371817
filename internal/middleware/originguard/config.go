package originguard

import (
	"github.com/gofiber/fiber/v2"
)

// Config defines the config for middleware.
type Config struct {
	// Next defines a function to skip this middleware when returned true.
	//
	// Optional. Default: nil
	Next func(c *fiber.Ctx) bool

	// AllowedIPPrefixes lists accepted client addresses. An entry matches
	// when the normalized address starts with it; entries containing "/"
	// are CIDR ranges.
	//
	// Required.
	AllowedIPPrefixes []string

	// AllowedOrigins lists the exact Origin values accepted when the
	// request carries an Origin or Referer header.
	//
	// Optional. Default: nil (any Origin header is rejected)
	AllowedOrigins []string

	// ClientIP resolves the client address checked against
	// AllowedIPPrefixes. See ProxyClientIP for deployments behind proxies.
	//
	// Optional. Default: c.IP()
	ClientIP func(c *fiber.Ctx) string

	// Forbidden defines the response for rejected requests. It receives
	// ErrUnauthorizedIP or ErrInvalidOrigin.
	//
	// Optional. Default: 403 with a generic JSON body
	Forbidden func(c *fiber.Ctx, err error) error
}

// ConfigDefault is the default config
var ConfigDefault = Config{
	Next:      nil,
	Forbidden: nil,
}

// Helper function to set default values
func configDefault(config ...Config) Config {
	// Return default config if nothing provided
	if len(config) < 1 {
		return ConfigDefault
	}

	// Override default config
	cfg := config[0]

	if cfg.Next == nil {
		cfg.Next = ConfigDefault.Next
	}
	if cfg.ClientIP == nil {
		cfg.ClientIP = func(c *fiber.Ctx) string { return c.IP() }
	}
	if cfg.Forbidden == nil {
		cfg.Forbidden = func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"code":    codeFor(err),
				"message": "Access denied",
			})
		}
	}
	return cfg
}
