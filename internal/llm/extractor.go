package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/shipdocs/internal/cache"
	"github.com/joseph-ayodele/shipdocs/internal/common"
)

const (
	defaultTimeout     = 45 * time.Second
	defaultMaxAttempts = 2
)

// Extractor runs a completion with a bounded timeout and at most two attempts, and only
// returns payloads that validate against the request schema.
type Extractor struct {
	completer   Completer
	timeout     time.Duration
	maxAttempts int
	limiter     *rate.Limiter
	responses   *cache.TTL[string, []byte]
	schemas     *SchemaValidator
	logger      *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxAttempts sets the attempt budget; values outside 1..2 are clamped.
func WithMaxAttempts(n int) Option {
	return func(e *Extractor) {
		switch {
		case n < 1:
			e.maxAttempts = 1
		case n > 2:
			e.maxAttempts = 2
		default:
			e.maxAttempts = n
		}
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(e *Extractor) {
		if rps > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithResponseCache reuses validated payloads for identical prompts.
func WithResponseCache(c *cache.TTL[string, []byte]) Option {
	return func(e *Extractor) { e.responses = c }
}

// NewExtractor wraps completer. A nil completer yields an Extractor that is never Available.
func NewExtractor(completer Completer, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		completer:   completer,
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		schemas:     &SchemaValidator{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available reports whether a completion backend is configured.
func (e *Extractor) Available() bool {
	return e != nil && e.completer != nil
}

// Extract returns a sanitized, schema-valid JSON object for req. Every failure mode
// (timeout, transport, malformed or schema-invalid payload) is an extraction service error.
func (e *Extractor) Extract(ctx context.Context, req CompletionRequest) ([]byte, error) {
	if !e.Available() {
		return nil, common.NewExtractionServiceError("no llm backend configured", nil)
	}
	key := cacheKey(req)
	if b, ok := e.responses.Get(key); ok {
		e.logger.Debug("llm.extract.cache_hit", "schema", req.SchemaName)
		return append([]byte(nil), b...), nil
	}

	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.NewString()
	}
	start := time.Now()
	e.logger.Info("llm.extract.start",
		"req_id", rid,
		"backend", e.completer.Name(),
		"schema", req.SchemaName,
		"user_len", len(req.User),
		"max_attempts", e.maxAttempts,
	)

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				lastErr = fmt.Errorf("rate limiter wait: %w", err)
				break
			}
		}
		out, err := e.attempt(ctx, req)
		if err == nil {
			e.responses.Put(key, out)
			e.logger.Info("llm.extract.ok",
				"req_id", rid,
				"attempt", attempt,
				"bytes", len(out),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return out, nil
		}
		lastErr = err
		e.logger.Warn("llm.extract.attempt_failed",
			"req_id", rid,
			"attempt", attempt,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if ctx.Err() != nil {
			break
		}
	}

	e.logger.Error("llm.extract.failed",
		"req_id", rid,
		"schema", req.SchemaName,
		"error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil, common.NewExtractionServiceError("llm "+req.SchemaName, lastErr)
}

func (e *Extractor) attempt(ctx context.Context, req CompletionRequest) ([]byte, error) {
	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.completer.Complete(actx, req)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout after %s: %w", e.timeout, err)
		}
		return nil, err
	}
	clean, _, err := NormalizeAndSanitizeJSON(raw, req.Schema, e.logger)
	if err != nil {
		return nil, err
	}
	if err := e.schemas.Validate(req, clean); err != nil {
		return nil, err
	}
	return clean, nil
}

func cacheKey(req CompletionRequest) string {
	h := sha256.New()
	for _, part := range []string{req.SchemaName, req.System, req.User} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
