// Package reconcile compares order records with the shipment instruction that declares them.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/rules"
	"github.com/joseph-ayodele/shipdocs/internal/textnorm"
)

// Engine matches declared items against order lines.
//
// Reconcile writes matched batch numbers into the Items of the records it is given. Callers
// that share records between goroutines must pass clones.
type Engine struct {
	rules  *rules.RuleSet
	logger *slog.Logger
}

func NewEngine(rs *rules.RuleSet, logger *slog.Logger) *Engine {
	if rs == nil {
		rs = rules.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: rs, logger: logger}
}

// Reconcile runs the per-order procedure for every order number referenced by the instruction,
// then for every remaining order record, and aggregates the verdicts.
func (e *Engine) Reconcile(ctx context.Context, orders []*entity.OrderRecord, inst *entity.ShipmentInstruction) (*entity.ValidationResult, error) {
	if inst == nil {
		return nil, fmt.Errorf("reconcile: %w: shipment instruction is required", common.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byNumber := make(map[string]*entity.OrderRecord, len(orders))
	var unnumbered []*entity.OrderRecord
	for _, o := range orders {
		if o == nil {
			continue
		}
		if n := o.Number(); n != "" {
			if _, dup := byNumber[n]; !dup {
				byNumber[n] = o
			}
			continue
		}
		unnumbered = append(unnumbered, o)
	}

	numbers := append([]string(nil), inst.OrderNumbers...)
	seen := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		seen[n] = struct{}{}
	}
	for _, o := range orders {
		if o == nil || o.Number() == "" {
			continue
		}
		if _, ok := seen[o.Number()]; !ok {
			seen[o.Number()] = struct{}{}
			numbers = append(numbers, o.Number())
		}
	}

	// a single unnumbered order is paired with a single otherwise unclaimed reference
	var paired *entity.OrderRecord
	if len(unnumbered) == 1 {
		var open []string
		for _, n := range inst.OrderNumbers {
			if _, ok := byNumber[n]; !ok {
				open = append(open, n)
			}
		}
		if len(open) == 1 {
			paired = unnumbered[0]
			byNumber[open[0]] = paired
			unnumbered = nil
		}
	}

	result := &entity.ValidationResult{OverallStatus: constants.ValidationPassed, Passed: true}
	for _, n := range numbers {
		rec := byNumber[n]
		var ov entity.OrderValidation
		if rec == nil {
			ov = entity.OrderValidation{
				OrderNumber: n,
				Status:      constants.ValidationFailed,
				Notes:       []string{"no order document for this order number"},
			}
		} else {
			ov = e.reconcileOrder(n, rec, inst.DeclaredFor(n))
			if rec == paired {
				ov.Notes = append(ov.Notes, "order number not found on document; paired with the only open reference")
			}
		}
		e.record(ctx, result, ov)
	}
	for _, rec := range unnumbered {
		ov := e.reconcileOrder("", rec, nil)
		ov.Status = constants.ValidationFailed
		ov.Notes = append(ov.Notes, fmt.Sprintf("order number unknown for %s", rec.Filename))
		e.record(ctx, result, ov)
	}

	if len(result.Orders) == 0 {
		result.OverallStatus = constants.ValidationWarning
		result.Passed = false
	}
	e.logger.InfoContext(ctx, "reconcile.done",
		"req_id", common.RequestIDFromContext(ctx),
		"run_id", common.RunIDFromContext(ctx),
		"overall_status", result.OverallStatus,
		"orders", len(result.Orders),
	)
	return result, nil
}

func (e *Engine) record(ctx context.Context, result *entity.ValidationResult, ov entity.OrderValidation) {
	result.Orders = append(result.Orders, ov)
	if ov.Status.Severity() > result.OverallStatus.Severity() {
		result.OverallStatus = ov.Status
	}
	if ov.Status != constants.ValidationPassed {
		result.Passed = false
	}
	e.logger.InfoContext(ctx, "reconcile.order.verdict",
		"req_id", common.RequestIDFromContext(ctx),
		"run_id", common.RunIDFromContext(ctx),
		"order_number", ov.OrderNumber,
		"status", ov.Status,
		"matched", ov.MatchedItems,
		"total", ov.TotalProductItems,
	)
}

type declared struct {
	item    entity.DeclaredItem
	norm    string
	claimed bool
}

func (e *Engine) reconcileOrder(number string, rec *entity.OrderRecord, items []entity.DeclaredItem) entity.OrderValidation {
	ov := entity.OrderValidation{OrderNumber: number}
	decl := make([]*declared, 0, len(items))
	for _, it := range items {
		decl = append(decl, &declared{item: it, norm: textnorm.Fold(it.Description)})
	}

	failed := false
	for i := range rec.Items {
		li := &rec.Items[i]
		check := entity.ItemCheck{
			Line:          i + 1,
			ItemCode:      li.ItemCode,
			Description:   li.Description,
			OrderQuantity: li.Quantity,
		}
		if e.rules.IsNonProduct(li.Description) {
			li.BatchNumber = nil
			check.Status = constants.ItemExcluded
			ov.Items = append(ov.Items, check)
			continue
		}
		ov.TotalProductItems++

		d := match(textnorm.Fold(li.Description), decl)
		if d == nil {
			check.Status = constants.ItemUnmatched
			check.BatchNumber = li.BatchNumber
			ov.Items = append(ov.Items, check)
			failed = true
			continue
		}
		d.claimed = true
		if d.item.BatchNumber != nil {
			b := *d.item.BatchNumber
			li.BatchNumber = &b
		}
		check.BatchNumber = li.BatchNumber
		check.MatchedWith = entity.Str(d.item.Description)
		check.DeclaredQuantity = d.item.Quantity
		check.DeclaredUnit = d.item.Unit
		check.Status = constants.ItemMatched
		if d.item.Quantity.Valid && li.Quantity.Valid && !d.item.Quantity.Decimal.Equal(li.Quantity.Decimal) {
			check.Status = constants.ItemQuantityMismatch
			ov.Notes = append(ov.Notes, fmt.Sprintf("line %d: declared %s, ordered %s",
				i+1, d.item.Quantity.Decimal.String(), li.Quantity.Decimal.String()))
			failed = true
		} else {
			ov.MatchedItems++
		}
		ov.Items = append(ov.Items, check)
	}

	for _, d := range decl {
		if !d.claimed {
			ov.UnclaimedDeclared = append(ov.UnclaimedDeclared, d.item.Description)
		}
	}

	switch {
	case ov.TotalProductItems == 0:
		ov.Status = constants.ValidationWarning
		ov.Notes = append(ov.Notes, "no comparable product items")
	case failed:
		ov.Status = constants.ValidationFailed
	default:
		ov.Status = constants.ValidationPassed
	}
	return ov
}

// match returns the first declared item equal to norm, then the first whose description
// contains or is contained in norm.
func match(norm string, decl []*declared) *declared {
	if norm == "" {
		return nil
	}
	for _, d := range decl {
		if d.norm == norm {
			return d
		}
	}
	for _, d := range decl {
		if d.norm == "" {
			continue
		}
		if strings.Contains(d.norm, norm) || strings.Contains(norm, d.norm) {
			return d
		}
	}
	return nil
}
