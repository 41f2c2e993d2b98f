// Package export renders reconciliation outcomes as XLSX workbooks.
package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/pipeline"
)

const (
	SheetValidation     = "Validation"
	SheetOrders         = "Orders"
	SheetDangerousGoods = "Dangerous Goods"
)

// Service produces XLSX bytes for validation reports.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func (w *sheetWriter) write(values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, w.row)
		_ = w.f.SetCellValue(w.sheet, cell, v)
	}
	w.row++
}

func newSheet(f *excelize.File, name string, headers ...string) (*sheetWriter, error) {
	if index, _ := f.GetSheetIndex(name); index == -1 {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	w := &sheetWriter{f: f, sheet: name, row: 1}
	vals := make([]any, len(headers))
	for i, h := range headers {
		vals[i] = h
	}
	w.write(vals...)
	return w, nil
}

// ValidationReportXLSX writes one row per order line, one per order verdict and one per
// dangerous-goods group. Unknown quantities are left blank.
func (s *Service) ValidationReportXLSX(out *pipeline.Outcome) ([]byte, error) {
	if out == nil || out.Validation == nil {
		return nil, fmt.Errorf("export: no validation result")
	}
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	items, err := newSheet(f, SheetValidation,
		"Order", "Line", "Item Code", "Description", "Order Qty", "Declared Qty", "Declared Unit", "Batch", "Status")
	if err != nil {
		return nil, err
	}
	for _, ov := range out.Validation.Orders {
		for _, c := range ov.Items {
			items.write(ov.OrderNumber, c.Line, entity.StrValue(c.ItemCode), c.Description,
				qty(c.OrderQuantity), qty(c.DeclaredQuantity), entity.StrValue(c.DeclaredUnit),
				entity.StrValue(c.BatchNumber), string(c.Status))
		}
	}
	activeIndex, _ := f.GetSheetIndex(SheetValidation)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	orders, err := newSheet(f, SheetOrders,
		"Order", "Status", "Matched", "Product Items", "Customer", "PO", "Buyer = Consignee", "Unclaimed Declared", "Notes")
	if err != nil {
		return nil, err
	}
	recs := map[string]*entity.OrderRecord{}
	for _, o := range out.Orders {
		recs[o.Number()] = o
	}
	for _, ov := range out.Validation.Orders {
		var customer, po string
		if rec := recs[ov.OrderNumber]; rec != nil {
			customer, po = entity.StrValue(rec.CustomerName), entity.StrValue(rec.PONumber)
		}
		same := "no"
		if out.BuyerSameAsConsignee[ov.OrderNumber] {
			same = "yes"
		}
		orders.write(ov.OrderNumber, string(ov.Status), ov.MatchedItems, ov.TotalProductItems, customer, po, same,
			strings.Join(ov.UnclaimedDeclared, "; "), strings.Join(ov.Notes, "; "))
	}
	orders.write()
	orders.write("Overall", string(out.Validation.OverallStatus))
	for _, fl := range out.Failures {
		orders.write("Unparsed", fl.Filename, "", "", "", "", "", "", fl.Error)
	}

	dgs, err := newSheet(f, SheetDangerousGoods, "Product", "Template", "Combined Qty", "Lines")
	if err != nil {
		return nil, err
	}
	for _, g := range out.DangerousGoods {
		var lines []string
		for _, m := range g.Members {
			label := m.Description
			if m.SourceOrderID != nil {
				label = *m.SourceOrderID + ": " + label
			}
			lines = append(lines, label)
		}
		dgs.write(g.ProductName, g.TemplateReference, g.CombinedQuantity.String(), strings.Join(lines, "; "))
	}

	_ = f.SetColWidth(SheetValidation, "D", "D", 44)
	_ = f.SetColWidth(SheetValidation, "H", "H", 18)
	_ = f.SetColWidth(SheetOrders, "E", "E", 28)
	_ = f.SetColWidth(SheetOrders, "H", "I", 48)
	_ = f.SetColWidth(SheetDangerousGoods, "A", "B", 32)
	_ = f.SetColWidth(SheetDangerousGoods, "D", "D", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.validation_report.ok",
		"run_id", out.RunID,
		"orders", len(out.Validation.Orders),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func qty(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
