package dg

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/rules"
	"github.com/joseph-ayodele/shipdocs/internal/textnorm"
)

// SameAddressThreshold is the Jaccard overlap at which two addresses are treated as one.
const SameAddressThreshold = 0.80

var (
	rePostalCA = regexp.MustCompile(`(?i)\b([A-Z]\d[A-Z])\s?(\d[A-Z]\d)\b`)
	rePostalUS = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	reNumeric  = regexp.MustCompile(`^\d+$`)
)

// Signature is the set of identifying tokens of a formatted address.
type Signature map[string]struct{}

// AddressSignature extracts the postal code, standalone numbers and every word that is not
// a stopword. Single letters are dropped.
func AddressSignature(addr string, rs *rules.RuleSet) Signature {
	if rs == nil {
		rs = rules.Default()
	}
	sig := Signature{}
	if m := rePostalCA.FindStringSubmatch(addr); m != nil {
		sig["postal:"+strings.ToLower(m[1]+m[2])] = struct{}{}
		addr = strings.Replace(addr, m[0], " ", 1)
	} else if all := rePostalUS.FindAllStringSubmatchIndex(addr, -1); len(all) > 0 {
		// the ZIP follows the street number
		m := all[len(all)-1]
		sig["postal:"+addr[m[2]:m[3]]] = struct{}{}
		addr = addr[:m[0]] + " " + addr[m[1]:]
	}
	for _, tok := range textnorm.Tokens(addr) {
		switch {
		case reNumeric.MatchString(tok):
			sig[tok] = struct{}{}
		case len([]rune(tok)) < 2, rs.IsStopword(tok):
		default:
			sig[tok] = struct{}{}
		}
	}
	return sig
}

// Jaccard returns |a∩b| / |a∪b|. Two empty signatures have no overlap.
func Jaccard(a, b Signature) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// AddressSimilarity compares two formatted addresses.
func AddressSimilarity(a, b string, rs *rules.RuleSet) float64 {
	return Jaccard(AddressSignature(a, rs), AddressSignature(b, rs))
}

// SameAddress reports whether the buyer block can be omitted because it matches the consignee.
func SameAddress(a, b entity.AddressBlock, rs *rules.RuleSet) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return false
	}
	return AddressSimilarity(a.Format(), b.Format(), rs) >= SameAddressThreshold
}
