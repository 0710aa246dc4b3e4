package main

import (
	"context"
	"os"

	"github.com/gadgetcloud/gc-backend/internal/app"
	"github.com/gadgetcloud/gc-backend/internal/pkg/config"
	"github.com/gadgetcloud/gc-backend/pkg/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{Service: "gc-backend"})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "gc-backend",
		Env:     cfg.Env,
	})

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize application")
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		log.Error().Err(err).Msg("application error")
		os.Exit(1)
	}
}
