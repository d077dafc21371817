package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/qolzam/telar/apps/relay/internal/pkg/log"
	platformconfig "github.com/qolzam/telar/apps/relay/internal/platform/config"
	"github.com/qolzam/telar/apps/relay/internal/server"
)

func main() {
	cfg, err := platformconfig.LoadFromEnv()
	if err != nil {
		log.Error("Failed to load platform config: %v", err)
		os.Exit(1)
	}
	for _, warning := range cfg.Warnings() {
		log.Warn("Config: %s", warning)
	}

	srv, err := server.New(cfg, server.Dependencies{})
	if err != nil {
		log.Error("Failed to build relay server: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		log.Info("Relay listening on %s%s", cfg.Server.Address(), cfg.Server.BaseRoute)
		listenErr <- srv.Listen()
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			log.Error("Server stopped: %v", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown failed: %v", err)
		os.Exit(1)
	}
}
