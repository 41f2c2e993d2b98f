package preextract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reBatch = regexp.MustCompile(`(?i)\b(?:batch|lot)\b\s*(?:#|number\b|no\b\.?)?\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{3,})\b`)

	reMORef      = regexp.MustCompile(`(?i)\bM\.?O\.?\s*(?:#|no\.?)?\s*[:#-]?\s*\d{3,}\b`)
	rePhone      = regexp.MustCompile(`(?i)(?:\b(?:tel|phone|ph|fax|cell|mobile)\b\.?\s*[:#]?\s*)?(?:\+?1[\s.-]?)?\(?\b\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b(?:\s*(?:x|ext\.?)\s*\d+)?`)
	reBatchLabel = regexp.MustCompile(`(?i)\b(?:batch|lot)\b\s*(?:#|number\b|no\b\.?)?\s*[:#]?\s*(?:[A-Z0-9][A-Z0-9-]*\d[A-Z0-9-]*)?`)
	reLineLabel  = regexp.MustCompile(`(?i)\bline\s*(?:#|no\.?)\s*:?\s*\d*`)
	reBlockLabel = regexp.MustCompile(`(?i)\b(?:sold|bill|ship)\s+to\s*:?`)
	reBareLabel  = regexp.MustCompile(`(?i)^(?:tel|phone|fax|batch|lot)\s*[:#]?$`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

const minFragment = 3

// findBatch returns the first batch/lot token on line.
func findBatch(line string) (string, bool) {
	m := reBatch.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	tok := strings.ToUpper(m[1])
	// a lot "number" needs at least one digit
	if !strings.ContainsAny(tok, "0123456789") {
		return "", false
	}
	return tok, true
}

// clean strips manufacturing-order references, phone numbers, batch/line labels and
// block labels, then collapses whitespace. Fragments shorter than minFragment runes are dropped.
func clean(s string) string {
	s = reBlockLabel.ReplaceAllString(s, " ")
	s = stripMORefs(s)
	s = rePhone.ReplaceAllString(s, " ")
	s = reBatchLabel.ReplaceAllString(s, " ")
	s = reLineLabel.ReplaceAllString(s, " ")
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	s = strings.Trim(s, " ,;:-|")
	if reBareLabel.MatchString(s) || utf8.RuneCountInString(s) < minFragment {
		return ""
	}
	return s
}

// block accumulates cleaned, de-duplicated lines.
type block struct {
	lines []string
	seen  map[string]struct{}
}

func (b *block) add(raw string) {
	for _, part := range strings.Split(raw, "\n") {
		c := clean(part)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if b.seen == nil {
			b.seen = make(map[string]struct{})
		}
		if _, dup := b.seen[key]; dup {
			continue
		}
		b.seen[key] = struct{}{}
		b.lines = append(b.lines, c)
	}
}

func (b *block) String() string { return strings.Join(b.lines, "\n") }

// stripMORefs removes manufacturing-order references but keeps "City, MO 63101" state codes.
func stripMORefs(s string) string {
	locs := reMORef.FindAllStringIndex(s, -1)
	if locs == nil {
		return s
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		if strings.HasSuffix(strings.TrimRight(s[:loc[0]], " "), ",") {
			continue
		}
		b.WriteString(s[prev:loc[0]])
		b.WriteString(" ")
		prev = loc[1]
	}
	b.WriteString(s[prev:])
	return b.String()
}
