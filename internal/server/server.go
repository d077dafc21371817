// Package server assembles the relay HTTP application from configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/qolzam/telar/apps/relay/internal/auth/replay"
	"github.com/qolzam/telar/apps/relay/internal/auth/signature"
	"github.com/qolzam/telar/apps/relay/internal/cache"
	"github.com/qolzam/telar/apps/relay/internal/middleware/originguard"
	"github.com/qolzam/telar/apps/relay/internal/middleware/requestid"
	"github.com/qolzam/telar/apps/relay/internal/pkg/log"
	platformconfig "github.com/qolzam/telar/apps/relay/internal/platform/config"
	"github.com/qolzam/telar/apps/relay/internal/platform/email"
	"github.com/qolzam/telar/apps/relay/internal/platform/metrics"
	"github.com/qolzam/telar/apps/relay/relay"
	relayErrors "github.com/qolzam/telar/apps/relay/relay/errors"
	"github.com/qolzam/telar/apps/relay/relay/handlers"
	"github.com/qolzam/telar/apps/relay/relay/services"
	"github.com/qolzam/telar/apps/relay/relay/templates"
)

// formOverhead is body room beyond the attachment for the other fields.
const formOverhead = 1 << 20

// Dependencies are optional collaborators. Nil fields are built from the
// configuration.
type Dependencies struct {
	Sender  email.Sender
	Cache   cache.Cache
	Metrics *metrics.Metrics
	// Now is the clock used for freshness checks.
	Now func() time.Time
}

// Server is the wired relay application.
type Server struct {
	App     *fiber.App
	Metrics *metrics.Metrics
	config  *platformconfig.Config
	cache   cache.Cache
}

// New builds the fiber app with the origin guard in front of every route.
func New(cfg *platformconfig.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.Server.Debug {
		log.InfoStruct(cfg.Redacted())
	}

	sender := deps.Sender
	if sender == nil {
		smtpSender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:        cfg.Email.SMTPHost,
			Port:        cfg.Email.SMTPPort,
			Username:    cfg.Email.SMTPUser,
			Password:    cfg.Email.SMTPPass,
			Timeout:     cfg.Email.SMTPTimeout,
			ImplicitTLS: cfg.Email.SMTPImplicitTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("smtp sender: %w", err)
		}
		sender = smtpSender
	}

	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	var guard replay.Guard = replay.Disabled{}
	var replayStats func() cache.CacheStats
	store := deps.Cache
	if cfg.Cache.Enabled {
		if store == nil {
			var err error
			store, err = cache.NewCache(cache.ConfigFromPlatform(cfg.Cache))
			if err != nil {
				return nil, fmt.Errorf("replay cache: %w", err)
			}
		}
		guard = replay.NewCacheGuard(store, cfg.Cache.Prefix, cfg.HMAC.Window)
		replayStats = store.Stats
		log.Info("Replay protection enabled (%s backend)", cfg.Cache.Backend)
	}

	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, err
	}

	relayService := services.NewService(
		signature.NewVerifier(cfg.HMAC.Secret),
		signature.FreshnessChecker{
			Window:        cfg.HMAC.Window,
			MaxFutureSkew: cfg.HMAC.MaxFutureSkew,
			Now:           deps.Now,
		},
		guard,
		sender,
		renderer,
		services.ServiceConfig{
			From:              cfg.Email.SMTPEmail,
			FromName:          cfg.Email.SMTPFromName,
			AppName:           cfg.Relay.Name,
			MaxAttachmentSize: cfg.Relay.MaxAttachmentSize,
			SummaryFields:     cfg.Relay.SummaryFields,
		},
	).WithObserver(m)

	guardMiddleware, err := newOriginGuard(cfg)
	if err != nil {
		return nil, err
	}

	fiberConfig := fiber.Config{
		AppName:               cfg.Relay.Name,
		BodyLimit:             int(2*cfg.Relay.MaxAttachmentSize) + formOverhead,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		DisableStartupMessage: !cfg.Server.Debug,
		ErrorHandler:          errorHandler,
	}
	if cfg.Server.ProxyHeader != "" {
		fiberConfig.ProxyHeader = cfg.Server.ProxyHeader
		fiberConfig.EnableTrustedProxyCheck = true
		fiberConfig.TrustedProxies = cfg.Server.TrustedProxies
		fiberConfig.EnableIPValidation = true
	}
	app := fiber.New(fiberConfig)

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(m.Middleware())
	app.Use(guardMiddleware)

	if len(cfg.Security.AllowedOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(cfg.Security.AllowedOrigins, ", "),
			AllowHeaders: "Origin, Content-Type, Accept",
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	relay.RegisterRoutes(app, &relay.RelayHandlers{
		RelayHandler: handlers.NewRelayHandler(relayService, handlers.HandlerConfig{
			MaxAttachmentSize: cfg.Relay.MaxAttachmentSize,
		}),
		HealthHandler: handlers.NewHealthHandler(cfg.Relay.Name, replayStats),
	}, cfg)
	app.Get("/metrics", m.Handler())

	return &Server{App: app, Metrics: m, config: cfg, cache: store}, nil
}

// newOriginGuard validates the allow-lists before building the middleware,
// which would otherwise panic on a malformed CIDR. The proxy header is only
// believed when the connecting peer is a trusted proxy.
func newOriginGuard(cfg *platformconfig.Config) (fiber.Handler, error) {
	if _, err := originguard.NewGuard(cfg.Security.AllowedIPPrefixes, cfg.Security.AllowedOrigins); err != nil {
		return nil, fmt.Errorf("origin guard: %w", err)
	}
	clientIP, err := originguard.ProxyClientIP(cfg.Server.ProxyHeader, cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("origin guard: %w", err)
	}
	return originguard.New(originguard.Config{
		AllowedIPPrefixes: cfg.Security.AllowedIPPrefixes,
		AllowedOrigins:    cfg.Security.AllowedOrigins,
		ClientIP:          clientIP,
		Forbidden:         relayErrors.HandleError,
	}), nil
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	return s.App.Listen(s.config.Server.Address())
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the replay cache.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.App.ShutdownWithContext(ctx)
	if s.cache != nil {
		if closeErr := s.cache.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// errorHandler answers errors that escaped a handler. It never overrides a
// response a handler already wrote.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	log.ErrorWithContext(c.UserContext(), "[ErrorHandler] Path: %s, Error: %v, Code: %d", c.Path(), err, code)

	if len(c.Response().Body()) > 0 {
		return nil
	}

	if fe == nil {
		return relayErrors.HandleError(c, err)
	}
	return c.Status(code).JSON(relayErrors.ErrorResponse{
		Code:    statusCode(code),
		Message: fe.Message,
	})
}

func statusCode(status int) string {
	if status == fiber.StatusRequestEntityTooLarge {
		return relayErrors.CodeAttachmentTooLarge
	}
	text := http.StatusText(status)
	if text == "" {
		return relayErrors.CodeSystemError
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
