// Package openai implements llm.Completer on the OpenAI Responses API with JSON-schema output.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/joseph-ayodele/shipdocs/internal/llm"
)

type Client struct {
	cfg    Config
	api    oa.Client
	logger *slog.Logger
}

// NewClient builds a client. Retries are owned by llm.Extractor, so the SDK's own are disabled.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{cfg: cfg, api: oa.NewClient(opts...), logger: logger}, nil
}

func (c *Client) Name() string { return "openai:" + c.cfg.Model }

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) ([]byte, error) {
	start := time.Now()
	resp, err := c.api.Responses.New(ctx, responses.ResponseNewParams{
		Model:        shared.ChatModel(c.cfg.Model),
		Instructions: oa.String(req.System),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: oa.String(req.User),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema(req.SchemaName, req.Schema),
		},
	})
	if err != nil {
		c.logger.Error("openai.responses.error",
			"model", c.cfg.Model,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("openai responses: %w", err)
	}
	out := strings.TrimSpace(resp.OutputText())
	c.logger.Debug("openai.responses.ok",
		"model", c.cfg.Model,
		"response_id", resp.ID,
		"out_len", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if out == "" {
		return nil, llm.ErrEmpty
	}
	return []byte(out), nil
}
