package style

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpansRoundTrip(t *testing.T) {
	red := Style{Fg: ANSIColor(1)}
	per := []Style{{}, {}, red, red, {}}

	spans := Spans(per)
	assert.Equal(t, []Span{
		{Start: 0, End: 2},
		{Start: 2, End: 4, Style: red},
		{Start: 4, End: 5},
	}, spans)
	assert.Equal(t, per, Expand(spans, len(per)))
}

func TestOverlayKeepsUnsetFields(t *testing.T) {
	base := Style{Fg: "2", Bg: "4", Attrs: Italic}
	got := base.Overlay(Style{Fg: "1", Attrs: Bold})
	assert.Equal(t, Style{Fg: "1", Bg: "4", Attrs: Italic | Bold}, got)
}

func TestVisible(t *testing.T) {
	text := []byte("pw=hunter2 ok\n")
	spans := []Span{
		{Start: 0, End: 3},
		{Start: 3, End: 10, Style: Style{Attrs: Censor}},
		{Start: 10, End: 14},
	}
	assert.Equal(t, "pw=******* ok\n", string(Visible(text, spans)))

	hidden := []Span{{Start: 0, End: len(text), Style: Style{Attrs: Hide}}}
	assert.Empty(t, Visible(text, hidden))
}
