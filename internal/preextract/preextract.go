// Package preextract recovers the billing and shipping address blocks that a two-column
// order layout collapses onto shared text lines, plus an optional batch/lot token.
// Its output is a hint for structuring, never a final address.
package preextract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/shipdocs/internal/entity"
)

// Strategy names which technique produced the hints.
type Strategy string

const (
	StrategyNone       Strategy = ""
	StrategyTable      Strategy = "table"
	StrategyPositional Strategy = "positional"
	StrategyColumns    Strategy = "columns"
)

// Hints are non-authoritative address and batch suggestions.
type Hints struct {
	BillingRaw  string   `json:"billing_raw,omitempty"`
	ShippingRaw string   `json:"shipping_raw,omitempty"`
	BatchNumber *string  `json:"batch_number,omitempty"`
	Strategy    Strategy `json:"strategy,omitempty"`
}

// Empty reports whether no address text was recovered.
func (h Hints) Empty() bool { return h.BillingRaw == "" && h.ShippingRaw == "" }

// BillingLines splits the billing hint into lines.
func (h Hints) BillingLines() []string { return splitNonEmpty(h.BillingRaw) }

// ShippingLines splits the shipping hint into lines.
func (h Hints) ShippingLines() []string { return splitNonEmpty(h.ShippingRaw) }

var (
	reLeftLabel  = regexp.MustCompile(`(?i)\b(?:sold|bill)\s+to\b`)
	reRightLabel = regexp.MustCompile(`(?i)\bship\s+to\b`)
	// layout-text stop markers
	reTextStop = regexp.MustCompile(`(?i)\b(?:business\s+no|item\s+no)\b`)
	// table stop markers: item header or totals/business number
	reTableStop = regexp.MustCompile(`(?i)\b(?:item|ordered|description|qty|quantity|subtotal|total|business\s+no)\b`)
)

// maxSectionLines bounds the scan when no stop marker is present.
const maxSectionLines = 15

type PreExtractor struct {
	cols   Columns
	logger *slog.Logger
}

func New(cols Columns, logger *slog.Logger) *PreExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreExtractor{cols: cols, logger: logger}
}

// Extract tries the table strategy, then x-coordinate splitting, then fixed character
// windows. When none yields text the hints are empty; that is not an error.
func (p *PreExtractor) Extract(doc *entity.RawDocument) Hints {
	if doc == nil {
		return Hints{}
	}
	log := p.logger.With("filename", doc.Filename)

	h := fromTables(doc.Tables)
	if h.Empty() {
		h = fromPositional(doc.Lines)
	}
	if h.Empty() {
		h = fromLayoutText(doc.RawText, p.cols)
	}
	if h.BatchNumber == nil {
		if b, ok := scanBatch(doc.RawText); ok {
			h.BatchNumber = &b
		}
	}

	log.Info("preextract.ok",
		"strategy", string(h.Strategy),
		"billing_lines", len(h.BillingLines()),
		"shipping_lines", len(h.ShippingLines()),
		"has_batch", h.BatchNumber != nil,
	)
	return h
}

// fromTables is Strategy A: a header row with Sold/Bill To and Ship To cells, followed by
// address rows until an item-table header or totals row.
func fromTables(tables []entity.RawTable) Hints {
	for _, t := range tables {
		left, right := -1, -1
		var billing, shipping block
		var batch *string
		collecting := false
		for _, row := range t.Rows {
			if !collecting {
				for ci, cell := range row {
					if loc := reLeftLabel.FindStringIndex(cell); loc != nil && left < 0 {
						left = ci
						billing.add(cell[loc[1]:])
					}
					if loc := reRightLabel.FindStringIndex(cell); loc != nil && right < 0 {
						right = ci
						shipping.add(cell[loc[1]:])
					}
				}
				collecting = left >= 0 || right >= 0
				continue
			}
			if rowHas(row, reTableStop) {
				break
			}
			if batch == nil {
				if b, ok := findBatch(strings.Join(row, " ")); ok {
					batch = &b
				}
			}
			if left >= 0 && left < len(row) {
				billing.add(row[left])
			}
			if right >= 0 && right < len(row) {
				shipping.add(row[right])
			}
		}
		h := Hints{BillingRaw: billing.String(), ShippingRaw: shipping.String(), BatchNumber: batch, Strategy: StrategyTable}
		if !h.Empty() {
			return h
		}
	}
	return Hints{}
}

// fromPositional splits words at the x position of the "Ship To" label.
func fromPositional(lines []entity.TextLine) Hints {
	for i, l := range lines {
		text := l.Text()
		if !reLeftLabel.MatchString(text) || !reRightLabel.MatchString(text) {
			continue
		}
		splitX, ok := shipLabelX(l)
		if !ok {
			continue
		}
		var billing, shipping block
		var batch *string
		for j := i; j < len(lines) && j-i <= maxSectionLines; j++ {
			cur := lines[j]
			if cur.Page != l.Page {
				break
			}
			full := cur.Text()
			if j > i && reTextStop.MatchString(full) {
				break
			}
			if batch == nil {
				if b, ok := findBatch(full); ok {
					batch = &b
				}
			}
			var lw, rw []string
			for _, w := range cur.Words {
				if w.X+w.W/2 < splitX {
					lw = append(lw, w.Text)
				} else {
					rw = append(rw, w.Text)
				}
			}
			billing.add(strings.Join(lw, " "))
			shipping.add(strings.Join(rw, " "))
		}
		h := Hints{BillingRaw: billing.String(), ShippingRaw: shipping.String(), BatchNumber: batch, Strategy: StrategyPositional}
		if !h.Empty() {
			return h
		}
	}
	return Hints{}
}

func shipLabelX(l entity.TextLine) (float64, bool) {
	for i, w := range l.Words {
		t := strings.ToLower(w.Text)
		if strings.HasPrefix(t, "ship") {
			if t == "ship" && i+1 < len(l.Words) && !strings.HasPrefix(strings.ToLower(l.Words[i+1].Text), "to") {
				continue
			}
			return w.X - 1, true
		}
	}
	return 0, false
}

// fromLayoutText is Strategy B: character windows over the lines between the header
// carrying both labels and the first stop marker. Batch detection sees the whole line.
func fromLayoutText(text string, cols Columns) Hints {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lloc := reLeftLabel.FindStringIndex(line)
		rloc := reRightLabel.FindStringIndex(line)
		if lloc == nil || rloc == nil || rloc[0] < lloc[1] {
			continue
		}
		c, ok := cols.complete()
		if !ok || c.IsZero() {
			split := runeCol(line, rloc[0])
			c = Columns{Left: Window{Start: 0, End: split}, Right: Window{Start: split}}
		}
		var billing, shipping block
		var batch *string
		for j := i; j < len(lines) && j-i <= maxSectionLines; j++ {
			cur := lines[j]
			if j > i && reTextStop.MatchString(cur) {
				break
			}
			if batch == nil {
				if b, ok := findBatch(cur); ok {
					batch = &b
				}
			}
			billing.add(c.Left.Slice(cur))
			shipping.add(c.Right.Slice(cur))
		}
		h := Hints{BillingRaw: billing.String(), ShippingRaw: shipping.String(), BatchNumber: batch, Strategy: StrategyColumns}
		if !h.Empty() {
			return h
		}
	}
	return Hints{}
}

func scanBatch(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		if b, ok := findBatch(line); ok {
			return b, true
		}
	}
	return "", false
}

func rowHas(row []string, re *regexp.Regexp) bool {
	for _, c := range row {
		if re.MatchString(c) {
			return true
		}
	}
	return false
}

func runeCol(s string, byteIdx int) int {
	return len([]rune(s[:byteIdx]))
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
