package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/preextract"
	"github.com/joseph-ayodele/shipdocs/internal/rawdoc"
)

// Dumps the raw extraction and pre-extraction hints for one order PDF.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "rawdoc <order.pdf>")
		os.Exit(2)
	}
	path := os.Args[1]

	if err := common.LoadDotEnv(""); err != nil {
		logger.Error("load .env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	x := rawdoc.NewExtractor(rawdoc.Config{
		Pdftotext: cfg.Extract.Pdftotext,
		MaxPages:  cfg.Extract.MaxPages,
		Timeout:   cfg.Extract.Timeout,
	}, logger)

	start := time.Now()
	doc, err := x.ExtractFile(ctx, path)
	if err != nil {
		logger.Error("raw extraction failed", "file", path, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	cols, err := preextract.ParseColumns(cfg.PreExtract.LeftWindow, cfg.PreExtract.RightWindow)
	if err != nil {
		logger.Error("invalid column windows", "error", err)
		os.Exit(2)
	}
	hints := preextract.New(cols, logger).Extract(doc)

	logger.Info("raw extraction OK",
		"file", path,
		"pages", doc.PageCount,
		"tables", len(doc.Tables),
		"chars", len(doc.RawText),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(struct {
		Document *entity.RawDocument `json:"document"`
		Hints    preextract.Hints    `json:"hints"`
	}{doc, hints})
}
