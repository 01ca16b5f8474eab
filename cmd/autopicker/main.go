package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvrlndr/autopicker/internal/app"
	"github.com/dvrlndr/autopicker/internal/config"
	"github.com/dvrlndr/autopicker/internal/observability"
	"github.com/dvrlndr/autopicker/internal/platform/id"
	"github.com/dvrlndr/autopicker/internal/platform/logging"
	"github.com/dvrlndr/autopicker/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	if runID, idErr := id.NewRunID(); idErr == nil {
		logger = logger.With("run_id", runID)
	}
	logging.SetDefault(logger)

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init tracing", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, runErr := application.Picker.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("flush traces", "error", err)
	}

	if runErr != nil {
		if errors.Is(runErr, usecase.ErrNoContest) {
			logger.Info("run finished", "outcome", "no contest")
			return
		}
		logger.Error("run failed", "date", result.Date, "stage", result.Stage, "error", runErr)
		os.Exit(1)
	}

	logger.Info("run finished",
		"date", result.Date,
		"submitted", result.Submitted,
		"picks", len(result.Picks),
		"status", result.APIStatus,
	)
}
