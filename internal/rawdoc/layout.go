package rawdoc

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/shipdocs/internal/entity"
)

const defaultFontSize = 10.0

// glyph is one positioned text run as reported by the PDF content stream.
type glyph struct {
	s    string
	x, w float64
	size float64
}

// posWord keeps the font size next to the word so gaps can be judged relative to it.
type posWord struct {
	entity.Word
	size float64
}

type posLine struct {
	page  int
	y     float64
	words []posWord
}

func (l posLine) toEntity() entity.TextLine {
	ws := make([]entity.Word, len(l.words))
	for i, w := range l.words {
		ws[i] = w.Word
	}
	return entity.TextLine{Page: l.page, Y: l.y, Words: ws}
}

// readPositioned walks every page and returns its rows, top to bottom.
// The pdf package panics on some malformed streams; that is reported as an error.
func readPositioned(data []byte, maxPages int) (lines []posLine, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("positional read panicked: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	n := r.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d rows: %w", i, err)
		}
		pageLines := make([]posLine, 0, len(rows))
		for _, row := range rows {
			gs := make([]glyph, 0, len(row.Content))
			for _, t := range row.Content {
				gs = append(gs, glyph{s: t.S, x: t.X, w: t.W, size: t.FontSize})
			}
			words := wordsFromGlyphs(gs)
			if len(words) == 0 {
				continue
			}
			pageLines = append(pageLines, posLine{page: i, y: float64(row.Position), words: words})
		}
		// PDF y grows upwards; present the page top first.
		sort.SliceStable(pageLines, func(a, b int) bool { return pageLines[a].y > pageLines[b].y })
		lines = append(lines, pageLines...)
	}
	return lines, nil
}

// wordsFromGlyphs merges adjacent glyph runs into words. A blank run or a gap wider
// than a fifth of the font size starts a new word.
func wordsFromGlyphs(gs []glyph) []posWord {
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].x < gs[j].x })
	var (
		words []posWord
		cur   *posWord
		end   float64
	)
	flush := func() {
		if cur != nil {
			words = append(words, *cur)
			cur = nil
		}
	}
	for _, g := range gs {
		size := g.size
		if size <= 0 {
			size = defaultFontSize
		}
		if strings.TrimSpace(g.s) == "" {
			flush()
			continue
		}
		if cur != nil && g.x-end < 0.2*size {
			cur.Text += g.s
			end = math.Max(end, g.x+g.w)
			cur.W = end - cur.X
			continue
		}
		flush()
		cur = &posWord{Word: entity.Word{Text: g.s, X: g.x, W: g.w}, size: size}
		end = g.x + g.w
	}
	flush()
	return words
}

// cells splits a line where the gap between words reaches two font sizes.
func cells(l posLine) []string {
	if len(l.words) == 0 {
		return nil
	}
	var (
		out  []string
		cell []string
	)
	prevEnd := l.words[0].X
	for i, w := range l.words {
		if i > 0 && w.X-prevEnd >= 2*w.size {
			out = append(out, strings.Join(cell, " "))
			cell = nil
		}
		cell = append(cell, w.Text)
		prevEnd = w.X + w.W
	}
	return append(out, strings.Join(cell, " "))
}

// tablesFromLines groups consecutive multi-cell rows on the same page into tables.
func tablesFromLines(lines []posLine) []entity.RawTable {
	var (
		tables []entity.RawTable
		rows   [][]string
		page   int
	)
	flush := func() {
		if len(rows) >= 2 {
			tables = append(tables, entity.RawTable{Page: page, Index: len(tables), Rows: rows})
		}
		rows = nil
	}
	for _, l := range lines {
		cs := cells(l)
		if len(cs) < 2 || (len(rows) > 0 && l.page != page) {
			flush()
		}
		if len(cs) < 2 {
			continue
		}
		page = l.page
		rows = append(rows, cs)
	}
	flush()
	return tables
}

// renderLines lays words out on a character grid so horizontal position survives
// in plain text. Used when pdftotext is unavailable.
func renderLines(lines []posLine) string {
	cw := charWidth(lines)
	var b strings.Builder
	page := 0
	for _, l := range lines {
		if page != 0 && l.page != page {
			b.WriteString("\n")
		}
		page = l.page
		col := 0
		for _, w := range l.words {
			target := int(math.Round(w.X / cw))
			if col > 0 && target <= col {
				target = col + 1
			}
			if target > col {
				b.WriteString(strings.Repeat(" ", target-col))
				col = target
			}
			b.WriteString(w.Text)
			col += utf8.RuneCountInString(w.Text)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func charWidth(lines []posLine) float64 {
	var total float64
	var n int
	for _, l := range lines {
		for _, w := range l.words {
			if c := utf8.RuneCountInString(w.Text); c > 0 && w.W > 0 {
				total += w.W
				n += c
			}
		}
	}
	if n == 0 || total <= 0 {
		return defaultFontSize * 0.5
	}
	return total / float64(n)
}
