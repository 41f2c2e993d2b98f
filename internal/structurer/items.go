package structurer

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
)

var (
	reInteger  = regexp.MustCompile(`^\d+$`)
	reMoney    = regexp.MustCompile(`^\$?-?\d{1,3}(?:,\d{3})*\.\d{2,4}$|^\$?-?\d+\.\d{2,4}$`)
	reWhole    = regexp.MustCompile(`^\$?-?\d{1,3}(?:,\d{3})+$|^\$?-?\d+$`)
	reUnitCode = regexp.MustCompile(`^[A-Z]{1,3}\d{0,2}$`)
	reTaxCode  = regexp.MustCompile(`^(?:G|H|E|Z|GST|HST|PST|\d+(?:\.\d+)?%)$`)
	reTotals   = regexp.MustCompile(`(?i)^\s*(?:sub\s*-?total|total|comments?)\b`)
	rePageMark = regexp.MustCompile(`(?i)^\s*(?:page|pg\.?)\s+\d+`)
)

// parseItems reads order lines under the grammar CODE QTY [UNIT] DESCRIPTION [TAX] UNIT_PRICE TOTAL_PRICE.
// Only lines after the item header are read when one exists.
func (f *Fallback) parseItems(text string) []entity.LineItem {
	body := text
	if loc := reItemHead.FindStringIndex(text); loc != nil {
		body = text[loc[0]:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		} else {
			body = ""
		}
	}

	var items []entity.LineItem
	for _, line := range strings.Split(body, "\n") {
		if reTotals.MatchString(line) {
			break
		}
		if rePageMark.MatchString(line) {
			continue
		}
		if it, ok := f.parseItemLine(line); ok {
			items = append(items, it)
		}
	}
	return items
}

func (f *Fallback) parseItemLine(line string) (entity.LineItem, bool) {
	toks := strings.Fields(line)
	if len(toks) < 4 {
		return entity.LineItem{}, false
	}

	qtyIdx := -1
	for i := 1; i < len(toks); i++ {
		if reInteger.MatchString(toks[i]) {
			qtyIdx = i
			break
		}
	}
	if qtyIdx < 0 {
		return entity.LineItem{}, false
	}

	// trailing prices, skipping tax markers; both prices share the last one's format
	end := len(toks)
	var prices []decimal.Decimal
	shape := reMoney
	for end > qtyIdx+1 && len(prices) < 2 {
		t := toks[end-1]
		if reTaxCode.MatchString(t) {
			end--
			continue
		}
		if len(prices) == 0 && reWhole.MatchString(t) {
			shape = reWhole
		}
		if !shape.MatchString(t) {
			break
		}
		prices = append([]decimal.Decimal{parseMoney(t)}, prices...)
		end--
	}
	if len(prices) == 0 {
		return entity.LineItem{}, false
	}

	qty, err := decimal.NewFromString(toks[qtyIdx])
	if err != nil {
		return entity.LineItem{}, false
	}

	unit := constants.DefaultUnit
	descStart := qtyIdx + 1
	if descStart < end && (f.rules.IsKnownUnit(toks[descStart]) || reUnitCode.MatchString(toks[descStart])) {
		unit = f.rules.NormalizeUnit(toks[descStart])
		descStart++
	}

	var desc []string
	for _, t := range toks[descStart:end] {
		if reTaxCode.MatchString(t) {
			continue
		}
		desc = append(desc, t)
	}
	if len(desc) == 0 {
		return entity.LineItem{}, false
	}

	it := entity.LineItem{
		ItemCode:    entity.Str(toks[0]),
		Description: strings.Join(desc, " "),
		Quantity:    decimal.NewNullDecimal(qty),
		Unit:        entity.Str(unit),
	}
	if len(prices) == 2 {
		it.UnitPrice = decimal.NewNullDecimal(prices[0])
		it.TotalPrice = decimal.NewNullDecimal(prices[1])
	} else {
		it.TotalPrice = decimal.NewNullDecimal(prices[0])
		if qty.IsPositive() {
			it.UnitPrice = decimal.NewNullDecimal(prices[0].DivRound(qty, 4))
		}
	}
	return it, true
}

func parseMoney(tok string) decimal.Decimal {
	tok = strings.NewReplacer("$", "", ",", "").Replace(tok)
	d, err := decimal.NewFromString(tok)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var (
	rePOStart    = regexp.MustCompile(`(?im)^\s*P\.?O\.?\s*(?:#|no\.?|number)?\s*:?\s*([A-Z0-9][A-Z0-9-]*\d[A-Z0-9-]*)\b`)
	rePOHash     = regexp.MustCompile(`(?i)\bPO#\s*:?\s*(\d+)`)
	rePurchase   = regexp.MustCompile(`(?i)\bpurchase\s+order\s*(?:#|no\.?)?\s*:\s*([A-Z0-9-]*\d[A-Z0-9-]*)`)
	reCustomerPO = regexp.MustCompile(`(?i)\bcustomer\s+PO\s*(?:#|no\.?)?\s*:\s*([A-Z0-9-]*\d[A-Z0-9-]*)`)
	rePOLoose    = regexp.MustCompile(`\bPO\b\D{0,12}?(\d{5,})`)
)

// findPO tries the labelled forms in order, then any "PO" followed by five or more digits in
// the body, then the same in the comments section.
func findPO(text string) *string {
	body, comments := text, ""
	if loc := reComment.FindStringIndex(text); loc != nil {
		body, comments = text[:loc[0]], text[loc[0]:]
	}
	for _, re := range []*regexp.Regexp{rePOStart, rePOHash, rePurchase, reCustomerPO} {
		if m := re.FindStringSubmatch(body); m != nil {
			return entity.Str(m[1])
		}
	}
	for _, section := range []string{body, comments} {
		for _, line := range strings.Split(section, "\n") {
			if m := rePOLoose.FindStringSubmatch(line); m != nil {
				return entity.Str(m[1])
			}
		}
	}
	return nil
}

var (
	reSubtotalLabel = regexp.MustCompile(`(?i)^\s*sub\s*-?total\b[^:\n]*:`)
	reTotalLabel    = regexp.MustCompile(`(?i)^\s*(?:total\s+amount|total|grand\s+total|amount\s+due)\b[^:\n]*:`)
	reTaxLabel      = regexp.MustCompile(`(?i)^\s*(?:tax|gst|hst|pst|qst|vat|sales\s+tax)\b[^:\n]*:`)
	reAmount        = regexp.MustCompile(`-?\$?\d[\d,]*(?:\.\d+)?`)
	reTaxWord       = regexp.MustCompile(`(?i)\btax\b`)
)

// parseTotals reads the labelled totals lines. A missing total is derived from subtotal and
// tax only when both are known.
func parseTotals(text string) (subtotal, tax, total decimal.NullDecimal) {
	for _, line := range strings.Split(text, "\n") {
		var dst *decimal.NullDecimal
		var label []int
		switch {
		case reSubtotalLabel.MatchString(line):
			dst, label = &subtotal, reSubtotalLabel.FindStringIndex(line)
		case reTaxLabel.MatchString(line):
			dst, label = &tax, reTaxLabel.FindStringIndex(line)
		case reTotalLabel.MatchString(line):
			label = reTotalLabel.FindStringIndex(line)
			dst = &total
			if reTaxWord.MatchString(line[:label[1]]) {
				dst = &tax
			}
		default:
			continue
		}
		if dst.Valid {
			continue
		}
		amounts := reAmount.FindAllString(line[label[1]:], -1)
		if len(amounts) == 0 {
			continue
		}
		*dst = decimal.NewNullDecimal(parseMoney(amounts[len(amounts)-1]))
	}
	if !total.Valid && subtotal.Valid && tax.Valid {
		total = decimal.NewNullDecimal(subtotal.Decimal.Add(tax.Decimal))
	}
	return subtotal, tax, total
}
