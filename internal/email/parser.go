// Package email turns a free-text shipment notification into a ShipmentInstruction.
package email

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/llm"
	"github.com/joseph-ayodele/shipdocs/internal/rules"
)

// Parser produces a shipment instruction from an email body.
type Parser interface {
	Parse(ctx context.Context, body string) (*entity.ShipmentInstruction, error)
}

// Fallback is the pattern-matching parser. Its output has the same shape as the LLM path.
type Fallback struct {
	rules  *rules.RuleSet
	logger *slog.Logger
}

func NewFallback(rs *rules.RuleSet, logger *slog.Logger) *Fallback {
	if rs == nil {
		rs = rules.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{rules: rs, logger: logger}
}

type block struct {
	order string
	text  string
}

// splitBlocks cuts the body at "Sales Order <n>:" headers. Text before the first header
// is returned as preamble.
func splitBlocks(body string) (preamble string, blocks []block) {
	locs := reBlockHeader.FindAllStringSubmatchIndex(body, -1)
	if len(locs) == 0 {
		return body, nil
	}
	preamble = body[:locs[0][0]]
	for i, loc := range locs {
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, block{order: body[loc[2]:loc[3]], text: body[loc[0]:end]})
	}
	return preamble, blocks
}

func (f *Fallback) Parse(_ context.Context, body string) (*entity.ShipmentInstruction, error) {
	inst := &entity.ShipmentInstruction{
		OrderNumbers:        OrderNumbers(body, f.rules),
		PONumbers:           poNumbers(body),
		CompanyName:         companyName(body),
		ItemsByOrder:        map[string][]entity.DeclaredItem{},
		OrderDetails:        map[string]entity.OrderShipment{},
		SpecialInstructions: specialInstructions(body),
		Source:              constants.SourceFallback,
	}

	preamble, blocks := splitBlocks(body)
	if len(blocks) > 0 {
		// preamble items cannot be attributed to an order
		inst.Items = parseItems(preamble, f.rules)
		for _, b := range blocks {
			items := parseItems(b.text, f.rules)
			inst.ItemsByOrder[b.order] = append(inst.ItemsByOrder[b.order], items...)
			inst.Items = append(inst.Items, items...)
			inst.OrderDetails[b.order] = blockDetails(b.text)
		}
		aggregate(inst)
	} else {
		inst.Items = parseItems(body, f.rules)
		d := blockDetails(body)
		inst.TotalWeight = d.GrossWeight
		if inst.TotalWeight == nil {
			inst.TotalWeight = d.NetWeight
		}
		inst.PalletCount = d.PalletCount
		inst.PalletDimensions = d.PalletDimensions
		if len(inst.OrderNumbers) == 1 {
			n := inst.OrderNumbers[0]
			inst.ItemsByOrder[n] = inst.Items
			inst.OrderDetails[n] = d
		}
	}

	f.logger.Debug("email.fallback.parsed",
		"orders", inst.OrderNumbers,
		"blocks", len(blocks),
		"items", len(inst.Items),
	)
	return inst, nil
}

// aggregate sums per-order weights and pallet counts when every block agrees on the unit.
func aggregate(inst *entity.ShipmentInstruction) {
	var total *entity.Weight
	pallets, havePallets := 0, false
	mixed := false
	for _, n := range inst.OrderNumbers {
		d, ok := inst.OrderDetails[n]
		if !ok {
			continue
		}
		if w := d.GrossWeight; w != nil {
			switch {
			case total == nil:
				total = &entity.Weight{Value: w.Value, Unit: w.Unit}
			case total.Unit == w.Unit:
				total.Value = total.Value.Add(w.Value)
			default:
				mixed = true
			}
		}
		if d.PalletCount != nil {
			pallets += *d.PalletCount
			havePallets = true
		}
		if inst.PalletDimensions == nil {
			inst.PalletDimensions = d.PalletDimensions
		}
	}
	if !mixed {
		inst.TotalWeight = total
	}
	if havePallets {
		inst.PalletCount = &pallets
	}
}

// LLMParser asks the extraction service for a shipment instruction.
type LLMParser struct {
	extractor *llm.Extractor
	rules     *rules.RuleSet
	logger    *slog.Logger
}

func NewLLMParser(extractor *llm.Extractor, rs *rules.RuleSet, logger *slog.Logger) *LLMParser {
	if rs == nil {
		rs = rules.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMParser{extractor: extractor, rules: rs, logger: logger}
}

func (p *LLMParser) Available() bool {
	return p != nil && p.extractor.Available()
}

func (p *LLMParser) Parse(ctx context.Context, body string) (*entity.ShipmentInstruction, error) {
	payload, err := p.extractor.Extract(ctx, llm.CompletionRequest{
		SchemaName: llm.InstructionSchemaName,
		Schema:     llm.ShipmentInstructionSchema(),
		System:     llm.BuildEmailSystemPrompt(),
		User:       llm.BuildEmailUserPrompt(body),
	})
	if err != nil {
		return nil, err
	}
	var inst entity.ShipmentInstruction
	if err := json.Unmarshal(payload, &inst); err != nil {
		return nil, common.NewExtractionServiceError("decode shipment instruction", err)
	}
	p.normalize(&inst, body)
	inst.Source = constants.SourceLLM
	return &inst, nil
}

// normalize keeps only well-formed order numbers, re-homes items filed under unknown keys,
// and canonicalizes units.
func (p *LLMParser) normalize(inst *entity.ShipmentInstruction, body string) {
	var numbers []string
	seen := map[string]struct{}{}
	for _, n := range inst.OrderNumbers {
		n = strings.TrimSpace(n)
		v := common.NewValidator().Field("order_number", n, common.OrderNumber)
		if v.HasErrors() {
			p.logger.Warn("email.llm.invalid_order_number", "value", n)
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	if len(numbers) == 0 {
		numbers = OrderNumbers(body, p.rules)
	}
	inst.OrderNumbers = numbers

	byOrder := map[string][]entity.DeclaredItem{}
	var stray []entity.DeclaredItem
	for _, k := range slices.Sorted(maps.Keys(inst.ItemsByOrder)) {
		items := p.cleanItems(inst.ItemsByOrder[k])
		if slices.Contains(numbers, k) {
			byOrder[k] = items
			continue
		}
		stray = append(stray, items...)
	}
	inst.ItemsByOrder = byOrder
	inst.Items = p.cleanItems(inst.Items)
	if len(inst.Items) == 0 {
		for _, n := range numbers {
			inst.Items = append(inst.Items, byOrder[n]...)
		}
	}
	inst.Items = append(inst.Items, stray...)
	if len(byOrder) == 0 && len(numbers) == 1 && len(inst.Items) > 0 {
		inst.ItemsByOrder[numbers[0]] = inst.Items
	}
	if inst.OrderDetails == nil {
		inst.OrderDetails = map[string]entity.OrderShipment{}
	}
	if inst.PONumbers == nil {
		inst.PONumbers = poNumbers(body)
	}
}

func (p *LLMParser) cleanItems(items []entity.DeclaredItem) []entity.DeclaredItem {
	out := items[:0:0]
	for _, it := range items {
		it.Description = strings.Join(strings.Fields(it.Description), " ")
		if it.Description == "" {
			continue
		}
		if it.Quantity.Valid && it.Quantity.Decimal.LessThan(decimal.Zero) {
			it.Quantity = decimal.NullDecimal{}
		}
		if it.Unit != nil {
			it.Unit = entity.Str(p.rules.NormalizeUnit(*it.Unit))
		}
		out = append(out, it)
	}
	return out
}

// Hybrid prefers the LLM parser and falls back to patterns on any failure.
type Hybrid struct {
	primary  *LLMParser
	fallback *Fallback
	logger   *slog.Logger
}

func NewHybrid(primary *LLMParser, fallback *Fallback, logger *slog.Logger) *Hybrid {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hybrid{primary: primary, fallback: fallback, logger: logger}
}

func (h *Hybrid) Parse(ctx context.Context, body string) (*entity.ShipmentInstruction, error) {
	if strings.TrimSpace(body) == "" {
		return nil, common.NewParseError("empty email body", nil)
	}
	start := time.Now()
	var inst *entity.ShipmentInstruction
	if h.primary.Available() {
		got, err := h.primary.Parse(ctx, body)
		switch {
		case err == nil:
			inst = got
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			h.logger.Warn("email.fallback.used", "reason", err)
		}
	}
	if inst == nil {
		got, err := h.fallback.Parse(ctx, body)
		if err != nil {
			return nil, err
		}
		inst = got
	}
	h.logger.Info("email.parse.ok",
		"source", inst.Source,
		"orders", inst.OrderNumbers,
		"items", len(inst.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return inst, nil
}
