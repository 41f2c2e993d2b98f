// Package app wires configuration into a ready Processor for the binaries.
package app

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/shipdocs/internal/cache"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/email"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/llm"
	"github.com/joseph-ayodele/shipdocs/internal/llm/openai"
	"github.com/joseph-ayodele/shipdocs/internal/llm/vertex"
	"github.com/joseph-ayodele/shipdocs/internal/locator"
	"github.com/joseph-ayodele/shipdocs/internal/pipeline"
	"github.com/joseph-ayodele/shipdocs/internal/preextract"
	"github.com/joseph-ayodele/shipdocs/internal/rawdoc"
	"github.com/joseph-ayodele/shipdocs/internal/rules"
	"github.com/joseph-ayodele/shipdocs/internal/structurer"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config    *common.Config
	Rules     *rules.RuleSet
	Processor *pipeline.Processor
	Locator   *locator.Locator

	closers []func() error
	logger  *slog.Logger
}

// NewLogger builds the process logger. Text output drops time and level for terminal use.
func NewLogger(w io.Writer, level string, json bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if json {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// Build assembles the pipeline. store may be nil. The LLM path is only wired when the
// configured provider has credentials; otherwise every document takes the deterministic path.
func Build(ctx context.Context, cfg *common.Config, store pipeline.RunStore, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	rs, err := rules.Load(cfg.Rules.File)
	if err != nil {
		return nil, err
	}
	a.Rules = rs

	cols, err := preextract.ParseColumns(cfg.PreExtract.LeftWindow, cfg.PreExtract.RightWindow)
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "column windows", err)
	}

	locOpts := []locator.Option{locator.WithListCache(cache.NewTTL[string, []locator.Entry](cfg.Cache.TTL, nil))}
	if cfg.Inbox.GCS || strings.HasPrefix(cfg.Inbox.Dir, "gs://") {
		g, err := locator.NewGCS(ctx, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		locOpts = append(locOpts, locator.WithGCS(g))
	}
	a.Locator = locator.New(logger, locOpts...)

	completer, err := a.completer(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	var (
		orderLLM *structurer.LLMStructurer
		emailLLM *email.LLMParser
	)
	if completer != nil {
		ext := llm.NewExtractor(completer, logger,
			llm.WithTimeout(cfg.LLM.Timeout),
			llm.WithMaxAttempts(cfg.LLM.MaxAttempts),
			llm.WithRateLimit(cfg.LLM.RPS),
			llm.WithResponseCache(cache.NewTTL[string, []byte](cfg.Cache.TTL, nil)),
		)
		orderLLM = structurer.NewLLMStructurer(ext, rs, logger)
		emailLLM = email.NewLLMParser(ext, rs, logger)
		logger.Info("llm enabled", "provider", completer.Name())
	} else {
		logger.Info("llm disabled; using deterministic extraction", "provider", cfg.LLM.Provider)
	}

	a.Processor = pipeline.NewProcessor(logger, pipeline.Deps{
		Extractor: rawdoc.NewExtractor(rawdoc.Config{
			Pdftotext: cfg.Extract.Pdftotext,
			MaxPages:  cfg.Extract.MaxPages,
			Timeout:   cfg.Extract.Timeout,
		}, logger),
		Pre:        preextract.New(cols, logger),
		Structurer: structurer.NewHybrid(orderLLM, structurer.NewFallback(rs, logger), logger),
		Email:      email.NewHybrid(emailLLM, email.NewFallback(rs, logger), logger),
		Rules:      rs,
		Store:      store,
		OrderCache: cache.NewTTL[string, *entity.OrderRecord](cfg.Cache.TTL, nil),
		Workers:    cfg.Inbox.Workers,
	})
	return a, nil
}

func (a *App) completer(ctx context.Context) (llm.Completer, error) {
	cfg := a.Config
	if !cfg.LLMEnabled() {
		return nil, nil
	}
	switch cfg.LLM.Provider {
	case "vertex":
		c, err := vertex.NewClient(ctx, vertex.Config{
			Project:  cfg.LLM.VertexProject,
			Location: cfg.LLM.VertexLocation,
			Model:    cfg.LLM.VertexModel,
		}, a.logger)
		if err != nil {
			return nil, common.NewExtractionServiceError("vertex client", err)
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		c, err := openai.NewClient(openai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, a.logger)
		if err != nil {
			return nil, common.NewExtractionServiceError("openai client", err)
		}
		return c, nil
	}
}

// Close releases cloud clients.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
