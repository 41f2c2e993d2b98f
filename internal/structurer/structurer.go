// Package structurer turns a RawDocument plus pre-extractor hints into an OrderRecord.
package structurer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/preextract"
)

// Structurer is one way of producing an order record.
type Structurer interface {
	Structure(ctx context.Context, doc *entity.RawDocument, hints preextract.Hints) (*entity.OrderRecord, error)
}

// Hybrid prefers the LLM path and falls back to the deterministic path when the LLM is
// unavailable or fails.
type Hybrid struct {
	primary  *LLMStructurer
	fallback *Fallback
	logger   *slog.Logger
}

// NewHybrid wires both paths. primary may be nil.
func NewHybrid(primary *LLMStructurer, fallback *Fallback, logger *slog.Logger) *Hybrid {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hybrid{primary: primary, fallback: fallback, logger: logger}
}

func (h *Hybrid) Structure(ctx context.Context, doc *entity.RawDocument, hints preextract.Hints) (*entity.OrderRecord, error) {
	if doc == nil {
		return nil, common.NewParseError("no document", nil)
	}
	start := time.Now()

	var llmErr error
	if h.primary.Available() {
		rec, err := h.primary.Structure(ctx, doc, hints)
		if err == nil {
			h.logger.InfoContext(ctx, "structurer.ok",
				"run_id", common.RunIDFromContext(ctx),
				"file", doc.Filename,
				"source", rec.Source,
				"order_number", rec.Number(),
				"items", len(rec.Items),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return rec, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		llmErr = err
		h.logger.WarnContext(ctx, "structurer.fallback.used",
			"run_id", common.RunIDFromContext(ctx), "file", doc.Filename, "reason", err)
	}

	rec, err := h.fallback.Structure(ctx, doc, hints)
	if err != nil {
		return nil, err
	}
	if llmErr != nil && !fallbackFound(rec) {
		h.logger.ErrorContext(ctx, "structurer.failed",
			"run_id", common.RunIDFromContext(ctx), "file", doc.Filename, "llm_error", llmErr)
		return nil, common.NewParseError("order could not be structured: "+doc.Filename, errors.Join(llmErr, common.ErrAmbiguous))
	}
	h.logger.InfoContext(ctx, "structurer.ok",
		"run_id", common.RunIDFromContext(ctx),
		"file", doc.Filename,
		"source", rec.Source,
		"order_number", rec.Number(),
		"items", len(rec.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// fallbackFound reports whether the deterministic path recovered anything at all.
func fallbackFound(rec *entity.OrderRecord) bool {
	return rec.OrderNumber != nil || len(rec.Items) > 0 ||
		!rec.BillingAddress.IsEmpty() || !rec.ShippingAddress.IsEmpty()
}

func statusFor(rec *entity.OrderRecord) constants.OrderStatus {
	if rec.OrderNumber != nil {
		return constants.OrderStatusFound
	}
	return constants.OrderStatusNotFound
}
