package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/api"
	"github.com/mcdev12/timing/go/internal/config"
	"github.com/mcdev12/timing/go/internal/gateway"
	"github.com/mcdev12/timing/go/internal/health"
)

func setupServer(cfg *config.Config, services *Services) *http.Server {
	handler := api.NewHandler(services.Orchestrator, services.Access).
		WithAnnouncer(services.Announcer)
	ws := gateway.NewWebSocketHandler(services.Connections)
	checker := setupHealthChecker(services)

	return api.NewServer(api.ServerConfig{
		Addr:           cfg.API.Listen,
		Token:          cfg.API.Token,
		AllowedOrigins: cfg.API.AllowedOrigins,
	}, handler, func(mux *http.ServeMux) {
		ws.RegisterRoutes(mux)
		mux.Handle("GET /ready", checker)
	})
}

func setupHealthChecker(services *Services) *health.Checker {
	checker := &health.Checker{
		Events:  services.Dispatcher,
		Started: services.Orchestrator.Started,
	}
	if services.Storage.db != nil {
		checker.DB = services.Storage.db
	}
	if services.JetStream != nil {
		checker.NATS = services.JetStream
	}
	return checker
}

// run starts every service, blocks until ctx is done, then shuts down in
// reverse order. Countdown state is persisted before the scheduler stops.
func run(ctx context.Context, cfg *config.Config, services *Services) error {
	var wg sync.WaitGroup
	background := context.WithoutCancel(ctx)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if err := services.Dispatcher.Start(background); err != nil {
		return fmt.Errorf("start event dispatcher: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		services.Connections.Start(ctx)
	}()

	if err := services.Orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	if err := services.Announcer.Load(cfg.Announcements); err != nil {
		log.Error().Err(err).Msg("failed to schedule some announcements")
	}

	if services.Listener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := services.Listener.Start(ctx); err != nil {
				log.Error().Err(err).Msg("command listener stopped")
			}
		}()
	}

	if services.Gate != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := services.Gate.ListenAndServe(ctx); err != nil {
				log.Error().Err(err).Msg("gate failed")
			}
		}()
	}

	server := setupServer(cfg, services)
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().AnErr("cause", context.Cause(ctx)).Msg("received shutdown signal")
	case err := <-serverErr:
		runErr = fmt.Errorf("HTTP server failed: %w", err)
	}

	stop()

	shutdownCtx, cancel := context.WithTimeout(background, shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if services.Gate != nil {
		if err := services.Gate.Close(); err != nil {
			log.Error().Err(err).Msg("gate shutdown failed")
		}
	}

	services.Announcer.StopAll()
	if err := services.Orchestrator.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to persist countdowns")
	}
	services.Scheduler.Close()
	services.Dispatcher.Stop()

	wg.Wait()

	if services.JetStream != nil {
		if err := services.JetStream.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS connection")
		}
	}
	if err := services.Storage.close(); err != nil {
		log.Error().Err(err).Msg("failed to close store")
	}
	return runErr
}
