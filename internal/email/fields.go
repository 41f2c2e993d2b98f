package email

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/rules"
)

var (
	// "2 pails of ANDEROL FGCS-2 Food Grade Grease, batch number WH1K25G043"
	reItem = regexp.MustCompile(`(?i)(?:^|[\s,:(-])(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s+([A-Za-z]+)\s+of\s+(.+?)(?:[,;]?\s*\(?\b(?:batch|lot)\b\s*(?:number|no\.?|#)?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9-]*)\)?)?\s*(?:[.;)](?:\s|$)|$)`)
	// sentence break before the next quantity
	reSentenceBreak = regexp.MustCompile(`[.;]\s+(\d)`)

	reBlockHeader = regexp.MustCompile(`(?im)^\s*(?:sales\s+order|SO)\s*#?\s*(\d{3,5})\s*:`)

	reGross     = regexp.MustCompile(`(?i)\bgross\s+weight\b\D{0,20}?([\d,]+(?:\.\d+)?)\s*(kgs?|lbs?)\b`)
	reNet       = regexp.MustCompile(`(?i)\bnet\s+weight\b\D{0,20}?([\d,]+(?:\.\d+)?)\s*(kgs?|lbs?)\b`)
	reWeight    = regexp.MustCompile(`(?i)\b(?:total\s+)?weight\b\D{0,20}?([\d,]+(?:\.\d+)?)\s*(kgs?|lbs?)\b`)
	rePallets   = regexp.MustCompile(`(?i)\b(\d+)\s+(?:pallets?|skids?)\b`)
	rePalletsOf = regexp.MustCompile(`(?i)^\s+of\b`)
	rePalletLbl = regexp.MustCompile(`(?i)\b(?:pallets?|skids?)\s*(?:count)?\s*[:=]\s*(\d+)\b`)
	reDims      = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?\s*[x×]\s*\d+(?:\.\d+)?\s*[x×]\s*\d+(?:\.\d+)?(?:\s*(?:in|inches|cm|mm|"))?)`)

	rePO      = regexp.MustCompile(`(?i)\b(?:P\.?O\.?|purchase\s+order|customer\s+PO)\s*(?:#|number|no\.?)?\s*:?\s*([A-Z0-9-]*\d[A-Z0-9-]*)`)
	reCompany = regexp.MustCompile(`\b[Ff]or[ \t]+([A-Z][\w&.'-]*(?:[ \t]+[A-Z][\w&.'-]*)*)`)
	reSpecial = regexp.MustCompile(`(?im)^\s*(?:special\s+instructions?|notes?)\s*:\s*(.+?)\s*$`)
)

// segments splits text into candidate item phrases.
func segments(text string) []string {
	text = reSentenceBreak.ReplaceAllString(text, "\n${1}")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func parseItems(text string, rs *rules.RuleSet) []entity.DeclaredItem {
	var items []entity.DeclaredItem
	for _, seg := range segments(text) {
		m := reItem.FindStringSubmatch(seg)
		if m == nil {
			continue
		}
		desc := strings.Trim(strings.TrimSpace(m[3]), ",.;:")
		if desc == "" {
			continue
		}
		qty, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}
		it := entity.DeclaredItem{
			Quantity:    decimal.NewNullDecimal(qty),
			Unit:        entity.Str(rs.NormalizeUnit(m[2])),
			Description: desc,
		}
		if m[4] != "" {
			it.BatchNumber = entity.Str(m[4])
		}
		items = append(items, it)
	}
	return items
}

func parseWeight(re *regexp.Regexp, text string) *entity.Weight {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	return &entity.Weight{Value: v, Unit: normalizeWeightUnit(m[2])}
}

func normalizeWeightUnit(u string) string {
	u = strings.ToLower(u)
	if strings.HasPrefix(u, "kg") {
		return "kg"
	}
	return "lb"
}

// palletCount prefers a labelled count, then "N pallets" that is not "N pallets of ...".
func palletCount(text string) *int {
	if m := rePalletLbl.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n
		}
	}
	for _, m := range rePallets.FindAllStringSubmatchIndex(text, -1) {
		if rePalletsOf.MatchString(text[m[1]:]) {
			continue
		}
		if n, err := strconv.Atoi(text[m[2]:m[3]]); err == nil {
			return &n
		}
	}
	return nil
}

func palletDimensions(text string) *string {
	if m := reDims.FindStringSubmatch(text); m != nil {
		return entity.Str(m[1])
	}
	return nil
}

func blockDetails(text string) entity.OrderShipment {
	d := entity.OrderShipment{
		GrossWeight:      parseWeight(reGross, text),
		NetWeight:        parseWeight(reNet, text),
		PalletCount:      palletCount(text),
		PalletDimensions: palletDimensions(text),
	}
	if d.GrossWeight == nil && d.NetWeight == nil {
		d.GrossWeight = parseWeight(reWeight, text)
	}
	return d
}

func poNumbers(text string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range rePO.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

var notCompany = map[string]struct{}{"SO": {}, "S0": {}, "SOs": {}, "Sales": {}, "Order": {}, "Orders": {}, "PO": {}}

func companyName(text string) *string {
	for _, m := range reCompany.FindAllStringSubmatch(text, -1) {
		name := strings.TrimRight(m[1], ".,'")
		first := strings.Fields(name)[0]
		if _, bad := notCompany[first]; bad {
			continue
		}
		return entity.Str(name)
	}
	return nil
}

func specialInstructions(text string) *string {
	var parts []string
	for _, m := range reSpecial.FindAllStringSubmatch(text, -1) {
		parts = append(parts, m[1])
	}
	return entity.Str(strings.Join(parts, " "))
}
