package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dvrlndr/autopicker/internal/app"
	"github.com/dvrlndr/autopicker/internal/config"
	"github.com/dvrlndr/autopicker/internal/platform/logging"
	"github.com/dvrlndr/autopicker/internal/usecase"
)

func main() {
	csvPath := flag.String("csv", "", "write per-pick detail rows to this file")
	local := flag.Bool("local", false, "summarize the local run history instead of the app's graded history")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *local {
		entries, err := application.History.Load(ctx)
		if err != nil {
			logger.Error("load local history", "error", err)
			os.Exit(1)
		}
		submitted, failed := usecase.LocalSummary(entries)
		fmt.Printf("local runs: %d submitted, %d failed\n", submitted, failed)
		return
	}

	summary, err := application.Reporter.Summary(ctx)
	if err != nil {
		logger.Error("build report", "error", err)
		os.Exit(1)
	}

	fmt.Printf("days: %d\n", summary.Days)
	fmt.Printf("graded picks: %d (%d still ungraded)\n", summary.Graded, summary.Ungraded)
	fmt.Printf("correct: %d (%.1f%%)\n", summary.Correct, summary.Accuracy()*100)
	for _, list := range summary.PerList {
		pct := 0.0
		if list.Graded > 0 {
			pct = float64(list.Correct) / float64(list.Graded) * 100
		}
		fmt.Printf("  list %d: %d/%d (%.1f%%)\n", list.ListIndex, list.Correct, list.Graded, pct)
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			logger.Error("create csv file", "path", *csvPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := application.Reporter.WriteCSV(ctx, f); err != nil {
			logger.Error("write csv", "path", *csvPath, "error", err)
			os.Exit(1)
		}
		logger.Info("csv written", "path", *csvPath)
	}
}
