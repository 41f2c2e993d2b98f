package structurer

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/shipdocs/internal/entity"
)

var (
	// City, Region Postal (Canadian or US postal code)
	reCityLine = regexp.MustCompile(`^(.+?),\s*([A-Za-z .]+?)\s+([A-Z]\d[A-Z]\s?\d[A-Z]\d|\d{5}(?:-\d{4})?)$`)
	reAttn     = regexp.MustCompile(`(?i)^(?:attn|attention)\s*[:.]?\s*(.*)$`)
	reLabel    = regexp.MustCompile(`(?i)^(?:sold|bill|ship)\s+to\s*:?\s*`)
	reCountry  = regexp.MustCompile(`(?i)^(?:canada|usa|u\.s\.a\.?|united states(?: of america)?|mexico)$`)
)

// parseAddress maps block lines onto an AddressBlock: company on the first line, street
// lines until the city line, then an optional country. Fields not seen stay unknown.
func parseAddress(lines []string) entity.AddressBlock {
	var a entity.AddressBlock
	var rest []string
	for _, l := range lines {
		l = strings.TrimSpace(reLabel.ReplaceAllString(strings.TrimSpace(l), ""))
		if l == "" {
			continue
		}
		if m := reAttn.FindStringSubmatch(l); m != nil {
			if a.Attention == nil {
				a.Attention = entity.Str(m[1])
			}
			continue
		}
		rest = append(rest, l)
	}
	if len(rest) == 0 {
		return a
	}

	a.Company = entity.Str(rest[0])
	cityFound := false
	for _, l := range rest[1:] {
		switch {
		case !cityFound && reCityLine.MatchString(l):
			m := reCityLine.FindStringSubmatch(l)
			a.City = entity.Str(m[1])
			a.Province = entity.Str(m[2])
			a.PostalCode = entity.Str(m[3])
			cityFound = true
		case reCountry.MatchString(l):
			a.Country = entity.Str(l)
		case !cityFound:
			a.Street = append(a.Street, l)
		}
	}
	return a
}
