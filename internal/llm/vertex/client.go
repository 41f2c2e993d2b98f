// Package vertex implements llm.Completer on Gemini models served by Vertex AI.
package vertex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/joseph-ayodele/shipdocs/internal/llm"
)

// Config selects the project, region and model.
type Config struct {
	Project  string
	Location string
	Model    string
}

type Client struct {
	cfg    Config
	base   *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Project == "" || cfg.Location == "" {
		return nil, fmt.Errorf("vertex: project and location cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, err := genai.NewClient(ctx, cfg.Project, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{cfg: cfg, base: base, logger: logger}, nil
}

func (c *Client) Name() string { return "vertex:" + c.cfg.Model }

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// Complete implements llm.Completer. Gemini takes no JSON Schema here, so the schema is
// appended to the user prompt and output is forced to JSON.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) ([]byte, error) {
	model := c.base.GenerativeModel(c.cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	schema, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	prompt := req.User + "\n\nReturn ONLY JSON matching this schema:\n" + string(schema)

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.logger.Error("vertex.generate.error", "model", c.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("vertex generate: %w", err)
	}
	out := responseText(resp)
	c.logger.Debug("vertex.generate.ok", "model", c.cfg.Model, "out_len", len(out),
		"elapsed_ms", time.Since(start).Milliseconds())
	if out == "" {
		return nil, llm.ErrEmpty
	}
	return []byte(out), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
