package email

import (
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/shipdocs/internal/rules"
)

var (
	// class 1: "orders 3004 & 3020", "SOs 3004, 3020"
	rePairRef = regexp.MustCompile(`(?i)\b(?:orders?|SOs?|sales\s+orders)\s*#?\s*(\d{3,5})\s*(?:&|and|,)\s*#?\s*(\d{3,5})\b`)
	// class 2: "SO 3024", "S0 3024" (typo), "Sales Order 3004:"
	reSORef    = regexp.MustCompile(`\b(?:SO|S0)\s*#?\s*:?\s*(\d{3,5})\b`)
	reSalesRef = regexp.MustCompile(`(?i)\bsales\s+order\s*#?\s*:?\s*(\d{3,5})\b`)
	// class 3: one ", 3022" / "and 3222" continuation step
	reContinuation = regexp.MustCompile(`(?i)^\s*(?:,|&|and)\s*(?:and\s+)?#?\s*(\d{3,5})\b`)
	reNextWord     = regexp.MustCompile(`^\s*([A-Za-z]+)`)
)

type ref struct {
	number string
	end    int
}

// OrderNumbers returns every referenced order number, de-duplicated in first-seen order
// across the pattern classes taken in priority order.
func OrderNumbers(text string, rs *rules.RuleSet) []string {
	if rs == nil {
		rs = rules.Default()
	}
	var class1, class2 []ref
	for _, m := range rePairRef.FindAllStringSubmatchIndex(text, -1) {
		if followedByUnit(text[m[1]:], rs) {
			class1 = append(class1, ref{number: text[m[2]:m[3]], end: m[3]})
			continue
		}
		class1 = append(class1,
			ref{number: text[m[2]:m[3]], end: m[1]},
			ref{number: text[m[4]:m[5]], end: m[1]},
		)
	}
	class2 = append(class2, findRefs(reSORef, text)...)
	class2 = append(class2, findRefs(reSalesRef, text)...)
	sort.SliceStable(class2, func(i, j int) bool { return class2[i].end < class2[j].end })

	var class3 []string
	for _, group := range [][]ref{class1, class2} {
		for _, r := range group {
			class3 = append(class3, continuation(text[r.end:], rs)...)
		}
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(n string) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	for _, r := range class1 {
		add(r.number)
	}
	for _, r := range class2 {
		add(r.number)
	}
	for _, n := range class3 {
		add(n)
	}
	return out
}

func findRefs(re *regexp.Regexp, text string) []ref {
	var out []ref
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, ref{number: text[m[2]:m[3]], end: m[1]})
	}
	return out
}

// continuation reads bare numbers chained after a reference ("SO 3012, 3022, and 3222").
// A number followed by a unit word ("3015, 250 kg") ends the chain.
func continuation(rest string, rs *rules.RuleSet) []string {
	var out []string
	for {
		m := reContinuation.FindStringSubmatchIndex(rest)
		if m == nil {
			return out
		}
		tail := rest[m[1]:]
		if followedByUnit(tail, rs) {
			return out
		}
		out = append(out, rest[m[2]:m[3]])
		rest = tail
	}
}

// followedByUnit reports whether the next word makes the preceding number a quantity.
func followedByUnit(tail string, rs *rules.RuleSet) bool {
	w := reNextWord.FindStringSubmatch(tail)
	if w == nil {
		return false
	}
	word := strings.ToLower(w[1])
	return rs.IsKnownUnit(word) || word == "x" || word == "of"
}
