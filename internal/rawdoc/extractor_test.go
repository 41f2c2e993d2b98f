package rawdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/joseph-ayodele/shipdocs/internal/common"
)

type fakeRunner struct {
	out   string
	err   error
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, []byte("boom"), f.err
	}
	return []byte(f.out), nil, nil
}

// buildPDF writes a one-page PDF with one text line per entry, computing xref offsets.
func buildPDF(lines []string) []byte {
	var content strings.Builder
	content.WriteString("BT /F1 10 Tf 14 TL 72 720 Td\n")
	for _, l := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", l)
	}
	content.WriteString("ET")

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func TestExtractRejectsUndecodable(t *testing.T) {
	e := NewExtractor(Config{}, nil).WithRunner(&fakeRunner{})
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("this is not a pdf at all")},
		{"truncated", buildPDF([]string{"Sold To:"})[:40]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := e.Extract(context.Background(), "x.pdf", tt.data)
			if err == nil {
				t.Fatalf("expected ParseError, got doc %+v", doc)
			}
			if !common.IsParseError(err) {
				t.Fatalf("error %v is not a ParseError", err)
			}
			if doc != nil {
				t.Fatal("partial document returned with ParseError")
			}
		})
	}
}

func TestExtractUsesLayoutText(t *testing.T) {
	layout := "Sold To:                 Ship To:\r\nACME Corp                Depot 4\f\nPage two\n"
	r := &fakeRunner{out: layout}
	e := NewExtractor(Config{MaxPages: 3}, nil).WithRunner(r)

	doc, err := e.Extract(context.Background(), "SalesOrder_3015.pdf", buildPDF([]string{"Sold To:", "ACME Corp"}))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.PageCount != 1 {
		t.Errorf("PageCount = %d, want 1", doc.PageCount)
	}
	want := "Sold To:                 Ship To:\nACME Corp                Depot 4\n\nPage two"
	if doc.RawText != want {
		t.Errorf("RawText = %q, want %q", doc.RawText, want)
	}
	if len(r.calls) != 1 {
		t.Fatalf("runner calls = %d", len(r.calls))
	}
	args := strings.Join(r.calls[0], " ")
	for _, flag := range []string{"-layout", "-enc UTF-8", "-l 3"} {
		if !strings.Contains(args, flag) {
			t.Errorf("pdftotext args %q missing %q", args, flag)
		}
	}
}

func TestExtractSurvivesMissingPdftotext(t *testing.T) {
	e := NewExtractor(Config{}, nil).WithRunner(&fakeRunner{err: errors.New("exec: not found")})
	doc, err := e.Extract(context.Background(), "o.pdf", buildPDF([]string{"Sold To:"}))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.PageCount != 1 {
		t.Errorf("PageCount = %d", doc.PageCount)
	}
}

func TestWordsFromGlyphs(t *testing.T) {
	gs := []glyph{
		{s: "S", x: 10, w: 5, size: 10},
		{s: "o", x: 15, w: 5, size: 10},
		{s: " ", x: 20, w: 3, size: 10},
		{s: "T", x: 23, w: 5, size: 10},
		{s: "o", x: 28, w: 5, size: 10},
		{s: "X", x: 100, w: 5, size: 10},
	}
	words := wordsFromGlyphs(gs)
	var got []string
	for _, w := range words {
		got = append(got, w.Text)
	}
	if strings.Join(got, "|") != "So|To|X" {
		t.Fatalf("words = %v", got)
	}
	if words[0].X != 10 || words[0].W != 10 {
		t.Errorf("first word geometry = %+v", words[0].Word)
	}
}

func TestTablesFromLines(t *testing.T) {
	w := func(text string, x float64) posWord {
		pw := posWord{size: 10}
		pw.Text, pw.X, pw.W = text, x, float64(len(text))*5
		return pw
	}
	lines := []posLine{
		{page: 1, y: 700, words: []posWord{w("Sold", 10), w("To:", 32), w("Ship", 300), w("To:", 322)}},
		{page: 1, y: 686, words: []posWord{w("ACME", 10), w("Corp", 36), w("Depot", 300)}},
		{page: 1, y: 600, words: []posWord{w("Thank", 10), w("you", 42)}},
		{page: 1, y: 500, words: []posWord{w("Item", 10), w("Qty", 200)}},
	}
	tables := tablesFromLines(lines)
	if len(tables) != 1 {
		t.Fatalf("tables = %d, want 1: %+v", len(tables), tables)
	}
	rows := tables[0].Rows
	if len(rows) != 2 || rows[0][0] != "Sold To:" || rows[0][1] != "Ship To:" || rows[1][1] != "Depot" {
		t.Fatalf("rows = %q", rows)
	}
}

func TestRenderLinesKeepsColumns(t *testing.T) {
	w := func(text string, x float64) posWord {
		pw := posWord{size: 10}
		pw.Text, pw.X, pw.W = text, x, float64(len(text))*5
		return pw
	}
	lines := []posLine{
		{page: 1, y: 700, words: []posWord{w("Sold", 0), w("Ship", 200)}},
		{page: 1, y: 690, words: []posWord{w("ACME", 0), w("Depot", 200)}},
	}
	out := strings.Split(strings.TrimRight(renderLines(lines), "\n"), "\n")
	if len(out) != 2 {
		t.Fatalf("lines = %q", out)
	}
	if strings.Index(out[0], "Ship") != strings.Index(out[1], "Depot") {
		t.Errorf("columns drifted: %q / %q", out[0], out[1])
	}
	if strings.Index(out[0], "Ship") != 40 {
		t.Errorf("Ship at column %d, want 40", strings.Index(out[0], "Ship"))
	}
}

func TestNormalizeLayout(t *testing.T) {
	in := "a\tb   \r\n-----\r\n\n\n\n\n\nc"
	want := "a" + strings.Repeat(" ", 7) + "b\n\n\nc"
	if got := NormalizeLayout(in); got != want {
		t.Errorf("NormalizeLayout = %q, want %q", got, want)
	}
}
