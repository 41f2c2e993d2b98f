package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joseph-ayodele/shipdocs/internal/app"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/pipeline"
)

// Structures the same order PDF repeatedly with caching off, to compare LLM and fallback
// output across runs.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: llm <order.pdf> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	times := 3
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	if err := common.LoadDotEnv(""); err != nil {
		logger.Error("load .env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	cfg.Cache.TTL = 0
	if !cfg.LLMEnabled() {
		logger.Warn("llm provider not configured; every run will use the fallback", "provider", cfg.LLM.Provider)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read order", "path", path, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	base := filepath.Base(path)
	for i := 1; i <= times; i++ {
		runCtx, cancelRun := context.WithTimeout(ctx, 2*time.Minute)
		start := time.Now()
		logger.Info("structure.run.start", "iter", i, "file", base)

		rec, err := a.Processor.ParseOrder(runCtx, pipeline.OrderInput{Filename: base, Data: data})
		cancelRun()

		if err != nil {
			logger.Error("structure.run.error", "iter", i, "err", err)
		} else {
			logger.Info("structure.run.ok",
				"iter", i,
				"source", rec.Source,
				"status", rec.Status,
				"order_number", rec.Number(),
				"items", len(rec.Items),
				"customer", rec.CustomerName,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}

		time.Sleep(750 * time.Millisecond)
	}

	logger.Info("done", "file", base, "times", times)
}
