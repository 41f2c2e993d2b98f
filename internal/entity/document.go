package entity

// RawTable is one table cell grid as laid out on a page. Cells are untyped and untrimmed.
type RawTable struct {
	Page  int        `json:"page"`
	Index int        `json:"table_index"`
	Rows  [][]string `json:"rows"`
}

// Word is a run of glyphs with its horizontal position in PDF user-space units.
type Word struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	W    float64 `json:"w"`
}

// TextLine is one visual row of a page, words ordered left to right.
type TextLine struct {
	Page  int     `json:"page"`
	Y     float64 `json:"y"`
	Words []Word  `json:"words"`
}

// Text joins the words of a line with single spaces.
func (l TextLine) Text() string {
	n := 0
	for _, w := range l.Words {
		n += len(w.Text) + 1
	}
	b := make([]byte, 0, n)
	for i, w := range l.Words {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, w.Text...)
	}
	return string(b)
}

// RawDocument is the layout-preserving capture of one PDF. It is created once and never mutated.
type RawDocument struct {
	Filename  string     `json:"filename"`
	RawText   string     `json:"raw_text"`
	Tables    []RawTable `json:"raw_tables"`
	Lines     []TextLine `json:"-"`
	PageCount int        `json:"page_count"`
}
