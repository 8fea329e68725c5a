// Package style holds the display style model shared by the ANSI
// interpreter, the color rules and the renderers.
package style

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Color is a terminal color in lipgloss notation: an ANSI index ("1",
// "196") or a hex triplet ("#ff8800"). The empty Color means unset.
type Color string

// ANSIColor returns the color for a 0-255 palette index.
func ANSIColor(n int) Color {
	return Color(strconv.Itoa(n))
}

// Attr is a set of text attributes.
type Attr uint16

const (
	Bold Attr = 1 << iota
	Faint
	Italic
	Underline
	Blink
	Reverse
	Conceal
	Strike

	// Hide removes the text from display entirely.
	Hide
	// Censor displays the text masked.
	Censor
)

// Style is a foreground color, background color and attribute set.
// The zero Style is the terminal default.
type Style struct {
	Fg    Color
	Bg    Color
	Attrs Attr
}

// Has reports whether all attributes in a are set.
func (s Style) Has(a Attr) bool {
	return s.Attrs&a == a
}

// IsZero reports whether s is the terminal default.
func (s Style) IsZero() bool {
	return s == Style{}
}

// Overlay returns s with top applied over it. Colors top leaves unset and
// attributes already present in s are kept.
func (s Style) Overlay(top Style) Style {
	if top.Fg != "" {
		s.Fg = top.Fg
	}
	if top.Bg != "" {
		s.Bg = top.Bg
	}
	s.Attrs |= top.Attrs
	return s
}

// Lipgloss converts s for rendering.
func (s Style) Lipgloss() lipgloss.Style {
	ls := lipgloss.NewStyle()
	if s.Fg != "" {
		ls = ls.Foreground(lipgloss.Color(s.Fg))
	}
	if s.Bg != "" {
		ls = ls.Background(lipgloss.Color(s.Bg))
	}
	if s.Has(Bold) {
		ls = ls.Bold(true)
	}
	if s.Has(Faint) {
		ls = ls.Faint(true)
	}
	if s.Has(Italic) {
		ls = ls.Italic(true)
	}
	if s.Has(Underline) {
		ls = ls.Underline(true)
	}
	if s.Has(Blink) {
		ls = ls.Blink(true)
	}
	if s.Has(Reverse) {
		ls = ls.Reverse(true)
	}
	if s.Has(Strike) {
		ls = ls.Strikethrough(true)
	}
	return ls
}

// Span styles the bytes [Start, End) of a text run.
type Span struct {
	Start int
	End   int
	Style Style
}

// Len returns the number of bytes covered.
func (s Span) Len() int {
	return s.End - s.Start
}

// Spans converts a per-byte style slice into the minimal run-length list of
// spans. Every byte is covered, including default-styled ones.
func Spans(per []Style) []Span {
	if len(per) == 0 {
		return nil
	}
	var out []Span
	start := 0
	for i := 1; i <= len(per); i++ {
		if i == len(per) || per[i] != per[start] {
			out = append(out, Span{Start: start, End: i, Style: per[start]})
			start = i
		}
	}
	return out
}

// Expand is the inverse of Spans for a text of length n. Bytes not covered
// by any span get the zero Style.
func Expand(spans []Span, n int) []Style {
	per := make([]Style, n)
	for _, sp := range spans {
		for i := max(sp.Start, 0); i < sp.End && i < n; i++ {
			per[i] = sp.Style
		}
	}
	return per
}

// Visible returns text as a viewer should see it: Hide bytes are dropped,
// Censor and Conceal bytes are masked with '*' and ' '.
func Visible(text []byte, spans []Span) []byte {
	out := make([]byte, 0, len(text))
	per := Expand(spans, len(text))
	for i, b := range text {
		switch {
		case per[i].Has(Hide):
		case per[i].Has(Censor) && b != '\n':
			out = append(out, '*')
		case per[i].Has(Conceal) && b != '\n':
			out = append(out, ' ')
		default:
			out = append(out, b)
		}
	}
	return out
}
