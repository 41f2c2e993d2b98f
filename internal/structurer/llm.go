package structurer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/llm"
	"github.com/joseph-ayodele/shipdocs/internal/preextract"
	"github.com/joseph-ayodele/shipdocs/internal/rules"
)

// LLMStructurer asks the extraction service for an order record and sanity-checks the result.
type LLMStructurer struct {
	extractor *llm.Extractor
	rules     *rules.RuleSet
	logger    *slog.Logger
}

func NewLLMStructurer(extractor *llm.Extractor, rs *rules.RuleSet, logger *slog.Logger) *LLMStructurer {
	if rs == nil {
		rs = rules.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMStructurer{extractor: extractor, rules: rs, logger: logger}
}

// Available reports whether an LLM backend is wired.
func (s *LLMStructurer) Available() bool {
	return s != nil && s.extractor.Available()
}

func (s *LLMStructurer) Structure(ctx context.Context, doc *entity.RawDocument, hints preextract.Hints) (*entity.OrderRecord, error) {
	if doc == nil {
		return nil, common.NewParseError("no document", nil)
	}
	s.logger.Debug("structurer.llm.start", "file", doc.Filename, "hint_strategy", hints.Strategy)

	req := llm.CompletionRequest{
		SchemaName: llm.OrderSchemaName,
		Schema:     llm.OrderRecordSchema(),
		System:     llm.BuildOrderSystemPrompt(),
		User: llm.BuildOrderUserPrompt(llm.OrderPromptInput{
			Filename:     doc.Filename,
			RawText:      doc.RawText,
			Tables:       doc.Tables,
			BillingHint:  hints.BillingRaw,
			ShippingHint: hints.ShippingRaw,
			BatchHint:    entity.StrValue(hints.BatchNumber),
		}),
	}
	payload, err := s.extractor.Extract(ctx, req)
	if err != nil {
		return nil, err
	}

	var rec entity.OrderRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, common.NewExtractionServiceError("decode order record", err)
	}
	s.normalize(&rec, doc.Filename)
	rec.Source = constants.SourceLLM
	rec.Filename = doc.Filename
	rec.Status = statusFor(&rec)
	return &rec, nil
}

// normalize drops values the model had no business producing: malformed order numbers,
// negative amounts, blank lines. Dropped values become unknown.
func (s *LLMStructurer) normalize(rec *entity.OrderRecord, filename string) {
	v := common.NewValidator()
	v.Field("order_number", rec.OrderNumber, common.OrderNumber)
	if v.Failed("order_number") {
		s.logger.Warn("structurer.llm.invalid_order_number", "file", filename, "value", entity.StrValue(rec.OrderNumber))
		rec.OrderNumber = nil
	}
	if rec.OrderNumber == nil {
		rec.OrderNumber = orderNumberFromFilename(filename)
	}

	items := rec.Items[:0]
	for _, it := range rec.Items {
		it.Description = strings.Join(strings.Fields(it.Description), " ")
		if it.Description == "" {
			continue
		}
		iv := common.NewValidator()
		iv.Field("quantity", it.Quantity, common.NonNegative)
		iv.Field("unit_price", it.UnitPrice, common.NonNegative)
		iv.Field("total_price", it.TotalPrice, common.NonNegative)
		if iv.Failed("quantity") {
			it.Quantity = decimal.NullDecimal{}
		}
		if iv.Failed("unit_price") {
			it.UnitPrice = decimal.NullDecimal{}
		}
		if iv.Failed("total_price") {
			it.TotalPrice = decimal.NullDecimal{}
		}
		if it.Unit != nil {
			it.Unit = entity.Str(s.rules.NormalizeUnit(*it.Unit))
		}
		// charge lines never carry a batch
		if s.rules.IsNonProduct(it.Description) {
			it.BatchNumber = nil
		}
		items = append(items, it)
	}
	rec.Items = items
	if rec.CustomerName == nil {
		rec.CustomerName = rec.BillingAddress.Company
	}
}
