// Package pipeline runs the per-shipment call chain: extraction, pre-extraction, structuring,
// email parsing, reconciliation and dangerous-goods grouping.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/cache"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/dg"
	"github.com/joseph-ayodele/shipdocs/internal/email"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/preextract"
	"github.com/joseph-ayodele/shipdocs/internal/reconcile"
	"github.com/joseph-ayodele/shipdocs/internal/rules"
	"github.com/joseph-ayodele/shipdocs/internal/structurer"
)

// DocumentExtractor turns PDF bytes into a RawDocument.
type DocumentExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*entity.RawDocument, error)
}

// RunStore persists audit rows for processed pairs.
type RunStore interface {
	Save(ctx context.Context, run *entity.Run) error
}

// OrderInput is one order document to parse.
type OrderInput struct {
	Filename string
	Data     []byte
}

// OrderFailure records a document that could not be parsed.
type OrderFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Outcome is everything derived from one order/email pair.
type Outcome struct {
	RunID          uuid.UUID                    `json:"run_id"`
	Orders         []*entity.OrderRecord        `json:"orders"`
	Failures       []OrderFailure               `json:"failures,omitempty"`
	Instruction    *entity.ShipmentInstruction  `json:"instruction"`
	Validation     *entity.ValidationResult     `json:"validation"`
	DangerousGoods []entity.DangerousGoodsGroup `json:"dangerous_goods,omitempty"`
	// BuyerSameAsConsignee is keyed by order number; false when either address is unknown.
	BuyerSameAsConsignee map[string]bool `json:"buyer_same_as_consignee"`
}

type Deps struct {
	Extractor  DocumentExtractor
	Pre        *preextract.PreExtractor
	Structurer structurer.Structurer
	Email      email.Parser
	Engine     *reconcile.Engine
	Classifier *dg.Classifier
	Rules      *rules.RuleSet
	Store      RunStore                                // optional
	OrderCache *cache.TTL[string, *entity.OrderRecord] // optional
	Workers    int
}

// Processor coordinates the stages. It holds no per-pair state.
type Processor struct {
	logger     *slog.Logger
	extractor  DocumentExtractor
	pre        *preextract.PreExtractor
	structurer structurer.Structurer
	email      email.Parser
	engine     *reconcile.Engine
	classifier *dg.Classifier
	rules      *rules.RuleSet
	store      RunStore
	orders     *cache.TTL[string, *entity.OrderRecord]
	workers    int
}

func NewProcessor(logger *slog.Logger, d Deps) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if d.Rules == nil {
		d.Rules = rules.Default()
	}
	if d.Pre == nil {
		d.Pre = preextract.New(preextract.Columns{}, logger)
	}
	if d.Structurer == nil {
		d.Structurer = structurer.NewHybrid(nil, structurer.NewFallback(d.Rules, logger), logger)
	}
	if d.Email == nil {
		d.Email = email.NewHybrid(nil, email.NewFallback(d.Rules, logger), logger)
	}
	if d.Engine == nil {
		d.Engine = reconcile.NewEngine(d.Rules, logger)
	}
	if d.Classifier == nil {
		d.Classifier = dg.NewClassifier(d.Rules, logger)
	}
	if d.Workers <= 0 {
		d.Workers = 4
	}
	return &Processor{
		logger:     logger,
		extractor:  d.Extractor,
		pre:        d.Pre,
		structurer: d.Structurer,
		email:      d.Email,
		engine:     d.Engine,
		classifier: d.Classifier,
		rules:      d.Rules,
		store:      d.Store,
		orders:     d.OrderCache,
		workers:    d.Workers,
	}
}

// ParseOrder extracts and structures one order document. The returned record belongs to the
// caller; cached records are cloned on the way out.
func (p *Processor) ParseOrder(ctx context.Context, in OrderInput) (*entity.OrderRecord, error) {
	if p.extractor == nil {
		return nil, common.NewAppError(common.CodeConfig, "no document extractor configured", common.ErrInternal)
	}
	key := orderKey(in)
	if rec, ok := p.orders.Get(key); ok {
		p.logger.DebugContext(ctx, "processor.order.cache_hit", "file", in.Filename)
		return rec.Clone(), nil
	}

	start := time.Now()
	doc, err := p.extractor.Extract(ctx, in.Filename, in.Data)
	if err != nil {
		p.logger.ErrorContext(ctx, "processor.extract.failed", "file", in.Filename, "err", err)
		return nil, err
	}
	hints := p.pre.Extract(doc)
	rec, err := p.structurer.Structure(ctx, doc, hints)
	if err != nil {
		p.logger.ErrorContext(ctx, "processor.structure.failed", "file", in.Filename, "err", err)
		return nil, err
	}
	p.orders.Put(key, rec.Clone())
	p.logger.InfoContext(ctx, "processor.order.ok",
		"req_id", common.RequestIDFromContext(ctx),
		"file", in.Filename,
		"order_number", rec.Number(),
		"status", rec.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// ParseEmail parses a shipment notification body.
func (p *Processor) ParseEmail(ctx context.Context, body string) (*entity.ShipmentInstruction, error) {
	return p.email.Parse(ctx, body)
}

// Reconcile matches the instruction against orders, writing batch numbers into orders.
func (p *Processor) Reconcile(ctx context.Context, orders []*entity.OrderRecord, inst *entity.ShipmentInstruction) (*entity.ValidationResult, error) {
	return p.engine.Reconcile(ctx, orders, inst)
}

// ClassifyDangerousGoods groups the order lines that res reports as matched. With a nil res
// every line of every order is grouped.
func (p *Processor) ClassifyDangerousGoods(orders []*entity.OrderRecord, res *entity.ValidationResult) []entity.DangerousGoodsGroup {
	verdicts := verdictsByRecord(orders, res)
	var items []entity.LineItem
	for _, o := range orders {
		if o == nil {
			continue
		}
		var matched map[int]bool
		if res != nil {
			matched = map[int]bool{}
			if ov := verdicts[o]; ov != nil {
				for _, c := range ov.Items {
					if c.Status == constants.ItemMatched {
						matched[c.Line] = true
					}
				}
			}
		}
		for i, it := range o.Items {
			if matched != nil && !matched[i+1] {
				continue
			}
			if it.SourceOrderID == nil {
				it.SourceOrderID = o.OrderNumber
			}
			items = append(items, it)
		}
	}
	return p.classifier.Classify(items)
}

// verdictsByRecord pairs each order with its verdict. An unnumbered order takes the one
// verdict that no numbered order claims, the same pairing reconciliation applies.
func verdictsByRecord(orders []*entity.OrderRecord, res *entity.ValidationResult) map[*entity.OrderRecord]*entity.OrderValidation {
	out := map[*entity.OrderRecord]*entity.OrderValidation{}
	if res == nil {
		return out
	}
	byNumber := map[string]*entity.OrderValidation{}
	for i := range res.Orders {
		if n := res.Orders[i].OrderNumber; n != "" {
			byNumber[n] = &res.Orders[i]
		}
	}
	var unnumbered []*entity.OrderRecord
	for _, o := range orders {
		if o == nil {
			continue
		}
		if n := o.Number(); n != "" {
			if ov := byNumber[n]; ov != nil {
				out[o] = ov
			}
			delete(byNumber, n)
			continue
		}
		unnumbered = append(unnumbered, o)
	}
	if len(unnumbered) != 1 {
		return out
	}
	var open []*entity.OrderValidation
	for _, ov := range byNumber {
		if len(ov.Items) > 0 {
			open = append(open, ov)
		}
	}
	if len(open) == 1 {
		out[unnumbered[0]] = open[0]
	}
	return out
}

// BuyerSameAsConsignee compares billing and shipping addresses of every numbered order.
func (p *Processor) BuyerSameAsConsignee(orders []*entity.OrderRecord) map[string]bool {
	out := make(map[string]bool, len(orders))
	for _, o := range orders {
		if n := o.Number(); n != "" {
			out[n] = dg.SameAddress(o.BillingAddress, o.ShippingAddress, p.rules)
		}
	}
	return out
}

// ProcessPair parses the order documents concurrently with the email, then reconciles.
// A document that cannot be parsed is reported in Failures; its order is judged without it.
func (p *Processor) ProcessPair(ctx context.Context, orders []OrderInput, body string) (*Outcome, error) {
	ctx, reqID := common.EnsureRequestID(ctx)
	runID := uuid.New()
	ctx = common.WithRunID(ctx, runID.String())
	start := time.Now()
	log := p.logger.With("req_id", reqID, "run_id", runID)
	log.InfoContext(ctx, "processor.pair.start", "orders", len(orders))

	parsed := make([]*entity.OrderRecord, len(orders))
	failed := make([]error, len(orders))
	var inst *entity.ShipmentInstruction

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	g.Go(func() error {
		var err error
		inst, err = p.ParseEmail(gctx, body)
		return err
	})
	for i, in := range orders {
		g.Go(func() error {
			rec, err := p.ParseOrder(gctx, in)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed[i] = err
				return nil
			}
			parsed[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.ErrorContext(ctx, "processor.pair.failed", "err", err)
		p.saveRun(ctx, runID, nil, nil, nil, err)
		return nil, err
	}

	out := &Outcome{RunID: runID, Instruction: inst}
	for i, rec := range parsed {
		if rec != nil {
			out.Orders = append(out.Orders, rec)
			continue
		}
		out.Failures = append(out.Failures, OrderFailure{Filename: orders[i].Filename, Error: failed[i].Error()})
	}

	res, err := p.Reconcile(ctx, out.Orders, inst)
	if err != nil {
		return nil, err
	}
	out.Validation = res
	out.DangerousGoods = p.ClassifyDangerousGoods(out.Orders, res)
	out.BuyerSameAsConsignee = p.BuyerSameAsConsignee(out.Orders)

	p.saveRun(ctx, runID, out.Orders, inst, res, nil)
	log.InfoContext(ctx, "processor.pair.ok",
		"overall_status", res.OverallStatus,
		"orders", len(out.Orders),
		"failures", len(out.Failures),
		"dg_groups", len(out.DangerousGoods),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (p *Processor) saveRun(ctx context.Context, id uuid.UUID, orders []*entity.OrderRecord, inst *entity.ShipmentInstruction, res *entity.ValidationResult, runErr error) {
	if p.store == nil {
		return
	}
	run := &entity.Run{ID: id, CreatedAt: time.Now().UTC()}
	for _, o := range orders {
		if n := o.Number(); n != "" {
			run.OrderNumbers = append(run.OrderNumbers, n)
		}
	}
	var err error
	if run.Orders, err = marshalOrNil(orders); err == nil {
		if run.Instruction, err = marshalOrNil(inst); err == nil {
			run.Validation, err = marshalOrNil(res)
		}
	}
	if err != nil {
		runErr = errors.Join(runErr, err)
	}
	if res != nil {
		run.OverallStatus = res.OverallStatus
		run.Passed = res.Passed
	}
	if runErr != nil {
		msg := runErr.Error()
		run.ErrorMessage = &msg
	}
	if err := p.store.Save(ctx, run); err != nil {
		p.logger.WarnContext(ctx, "processor.run.save_failed", "run_id", id, "err", err)
	}
}

func marshalOrNil(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []*entity.OrderRecord:
		if t == nil {
			return nil, nil
		}
	case *entity.ShipmentInstruction:
		if t == nil {
			return nil, nil
		}
	case *entity.ValidationResult:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func orderKey(in OrderInput) string {
	h := sha256.New()
	h.Write([]byte(in.Filename))
	h.Write([]byte{0})
	h.Write(in.Data)
	return hex.EncodeToString(h.Sum(nil))
}
