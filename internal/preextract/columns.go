package preextract

import (
	"fmt"
	"strconv"
	"strings"
)

// Window is a half-open rune column range. End <= 0 means "to end of line".
type Window struct {
	Start int
	End   int
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool { return w.Start == 0 && w.End == 0 }

// Slice cuts line to the window, counting runes so multi-byte text keeps its columns.
func (w Window) Slice(line string) string {
	r := []rune(line)
	start := w.Start
	if start < 0 {
		start = 0
	}
	if start >= len(r) {
		return ""
	}
	end := w.End
	if end <= 0 || end > len(r) {
		end = len(r)
	}
	if end <= start {
		return ""
	}
	return string(r[start:end])
}

// Columns are the billing (left) and shipping (right) windows of the layout-text strategy.
// The zero value derives both from the column of the "Ship To" label on the header line.
type Columns struct {
	Left  Window
	Right Window
}

// IsZero reports whether the columns should be derived from the header.
func (c Columns) IsZero() bool { return c.Left.IsZero() && c.Right.IsZero() }

// ParseWindow parses "start:end" (end may be empty for "to end of line").
func ParseWindow(s string) (Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Window{}, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("window %q: want start:end", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || start < 0 {
		return Window{}, fmt.Errorf("window %q: bad start", s)
	}
	end := 0
	if e := strings.TrimSpace(parts[1]); e != "" {
		end, err = strconv.Atoi(e)
		if err != nil || end <= start {
			return Window{}, fmt.Errorf("window %q: bad end", s)
		}
	}
	return Window{Start: start, End: end}, nil
}

// ParseColumns builds Columns from two window specs; both empty yields derived columns.
func ParseColumns(left, right string) (Columns, error) {
	l, err := ParseWindow(left)
	if err != nil {
		return Columns{}, err
	}
	r, err := ParseWindow(right)
	if err != nil {
		return Columns{}, err
	}
	c, ok := Columns{Left: l, Right: r}.complete()
	if !ok {
		return Columns{}, fmt.Errorf("columns %q/%q: one window must end where the other starts", left, right)
	}
	return c, nil
}

// complete fills a missing window from the other one: the right column starts where the
// left one ends, and the left column runs up to the start of the right one.
func (c Columns) complete() (Columns, bool) {
	switch {
	case c.IsZero():
		return c, true
	case c.Right.IsZero():
		if c.Left.End <= 0 {
			return c, false
		}
		c.Right = Window{Start: c.Left.End}
	case c.Left.IsZero():
		if c.Right.Start <= 0 {
			return c, false
		}
		c.Left = Window{Start: 0, End: c.Right.Start}
	}
	return c, true
}
