package structurer

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/preextract"
	"github.com/joseph-ayodele/shipdocs/internal/rules"
)

var (
	reFilenameOrder = regexp.MustCompile(`(?i)salesorder[_ ]*(\d{3,5})`)

	reSoldTo   = regexp.MustCompile(`(?i)\b(?:sold|bill)\s+to\s*:?`)
	reShipTo   = regexp.MustCompile(`(?i)\bship\s+to\s*:?`)
	reItemHead = regexp.MustCompile(`(?im)^\s*(?:item|ordered|description|qty)\b`)
	reComment  = regexp.MustCompile(`(?im)^\s*comments?\s*:`)

	reOrderDate = regexp.MustCompile(`(?i)\border\s+date\s*:?\s*([0-9][0-9/.\-]+[0-9]|[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4})`)
	reShipDate  = regexp.MustCompile(`(?i)\b(?:ship|due)\s+date\s*:?\s*([0-9][0-9/.\-]+[0-9]|[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4})`)
	reTerms     = regexp.MustCompile(`(?im)\bterms\s*:\s*(\S+(?: \S+)*)`)
)

// Fallback is the deterministic, pattern-based structurer. It never calls out and produces
// identical output for identical input.
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

func (f *Fallback) Structure(_ context.Context, doc *entity.RawDocument, hints preextract.Hints) (*entity.OrderRecord, error) {
	if doc == nil {
		return nil, common.NewParseError("no document", nil)
	}
	text := doc.RawText

	rec := &entity.OrderRecord{
		OrderNumber: orderNumberFromFilename(doc.Filename),
		Source:      constants.SourceFallback,
		Filename:    doc.Filename,
	}

	billing, shipping := sectionLines(text)
	if lines := hints.BillingLines(); len(lines) > 0 {
		billing = lines
	}
	if lines := hints.ShippingLines(); len(lines) > 0 {
		shipping = lines
	}
	rec.BillingAddress = parseAddress(billing)
	rec.ShippingAddress = parseAddress(shipping)
	rec.CustomerName = rec.BillingAddress.Company

	rec.Items = f.parseItems(text)
	if hints.BatchNumber != nil {
		f.applyBatchHint(rec.Items, *hints.BatchNumber)
	}
	rec.PONumber = findPO(text)
	rec.Subtotal, rec.Tax, rec.Total = parseTotals(text)

	if m := reOrderDate.FindStringSubmatch(text); m != nil {
		rec.OrderDate = entity.Str(m[1])
	}
	if m := reShipDate.FindStringSubmatch(text); m != nil {
		rec.ShipDate = entity.Str(m[1])
	}
	if m := reTerms.FindStringSubmatch(text); m != nil {
		rec.Terms = entity.Str(m[1])
	}
	rec.Status = statusFor(rec)

	if rec.BillingAddress.IsEmpty() || rec.ShippingAddress.IsEmpty() || len(rec.Items) == 0 {
		f.logger.Info("structurer.fallback.ambiguous",
			"file", doc.Filename,
			"billing_found", !rec.BillingAddress.IsEmpty(),
			"shipping_found", !rec.ShippingAddress.IsEmpty(),
			"items", len(rec.Items),
		)
	}
	return rec, nil
}

// applyBatchHint puts a document-level batch on the only product line, if there is exactly one.
func (f *Fallback) applyBatchHint(items []entity.LineItem, batch string) {
	idx := -1
	for i := range items {
		if f.rules.IsNonProduct(items[i].Description) {
			continue
		}
		if idx >= 0 {
			return
		}
		idx = i
	}
	if idx >= 0 && items[idx].BatchNumber == nil {
		items[idx].BatchNumber = entity.Str(batch)
	}
}

func orderNumberFromFilename(name string) *string {
	if m := reFilenameOrder.FindStringSubmatch(name); m != nil {
		return entity.Str(m[1])
	}
	return nil
}

// sectionLines returns the lines between "Sold To:" and "Ship To:" and between "Ship To:"
// and the item header or "Comment:".
func sectionLines(text string) (billing, shipping []string) {
	sold := reSoldTo.FindStringIndex(text)
	ship := reShipTo.FindStringIndex(text)
	if ship == nil {
		return nil, nil
	}
	end := len(text)
	if loc := reItemHead.FindStringIndex(text[ship[1]:]); loc != nil {
		end = ship[1] + loc[0]
	}
	if loc := reComment.FindStringIndex(text[ship[1]:]); loc != nil && ship[1]+loc[0] < end {
		end = ship[1] + loc[0]
	}
	if sold != nil && sold[1] <= ship[0] {
		billing = cleanLines(text[sold[1]:ship[0]])
	}
	shipping = cleanLines(text[ship[1]:end])
	return billing, shipping
}

func cleanLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
