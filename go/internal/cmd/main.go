package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/config"
)

func main() {
	config.LoadDotEnv()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(getEnv("TIMING_CONFIG", "timing.yml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A completed Restart countdown ends the process through this cancel.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	services, err := setupServices(ctx, cfg, func(reason string) {
		cancel(errors.New(reason))
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}

	if err := run(ctx, cfg, services); err != nil {
		log.Fatal().Err(err).Msg("timingd failed")
	}

	cause := context.Cause(ctx)
	log.Info().AnErr("cause", cause).Msg("timingd shutdown complete")
}
