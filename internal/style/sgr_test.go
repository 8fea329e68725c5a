package style

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(p *Parser, chunks ...string) (string, []Style) {
	var text []byte
	var per []Style
	for _, c := range chunks {
		t, spans := p.Feed([]byte(c))
		text = append(text, t...)
		per = append(per, Expand(spans, len(t))...)
	}
	return string(text), per
}

func TestParserStripsAndStyles(t *testing.T) {
	var p Parser
	text, per := feedAll(&p, "a\x1b[1;31mbc\x1b[0md")

	require.Equal(t, "abcd", text)
	assert.Equal(t, Style{}, per[0])
	assert.Equal(t, Style{Fg: "1", Attrs: Bold}, per[1])
	assert.Equal(t, Style{Fg: "1", Attrs: Bold}, per[2])
	assert.Equal(t, Style{}, per[3])
}

func TestParserSequenceSplitAcrossFeeds(t *testing.T) {
	var p Parser
	text, per := feedAll(&p, "x\x1b", "[3", "2mok", "\x1b[m!")

	require.Equal(t, "xok!", text)
	assert.Equal(t, Style{}, per[0])
	assert.Equal(t, Style{Fg: "2"}, per[1])
	assert.Equal(t, Style{Fg: "2"}, per[2])
	assert.Equal(t, Style{}, per[3])
}

func TestParserStyleCarriesAcrossFeeds(t *testing.T) {
	var p Parser
	feedAll(&p, "\x1b[4;44m")
	assert.Equal(t, Style{Bg: "4", Attrs: Underline}, p.Current())

	_, per := feedAll(&p, "z")
	assert.Equal(t, Style{Bg: "4", Attrs: Underline}, per[0])
}

func TestParserNonSGRSequencesRemoved(t *testing.T) {
	var p Parser
	text, _ := feedAll(&p,
		"\x1b[2J",               // erase display
		"\x1b[?25l",             // hide cursor
		"\x1b]0;title\x07",      // window title
		"\x1b]8;;http://x\x1b\\", // hyperlink, ST terminated
		"\x1b(B",                // charset
		"hi\r\n",
	)
	assert.Equal(t, "hi\r\n", text)
}

func TestParserControlByteAbortsCSI(t *testing.T) {
	var p Parser
	text, _ := feedAll(&p, "\x1b[31\nnext")
	assert.Equal(t, "\nnext", text)
	assert.Equal(t, Style{}, p.Current())
}

func TestApplySGR(t *testing.T) {
	tests := []struct {
		name   string
		start  Style
		params string
		want   Style
	}{
		{"empty resets", Style{Fg: "1", Attrs: Bold}, "", Style{}},
		{"bright colors", Style{}, "91;102", Style{Fg: "9", Bg: "10"}},
		{"256 color", Style{}, "38;5;208", Style{Fg: "208"}},
		{"truecolor", Style{}, "48;2;255;128;0", Style{Bg: "#ff8000"}},
		{"truecolor then bold", Style{}, "38;2;1;2;3;1", Style{Fg: "#010203", Attrs: Bold}},
		{"colon truecolor", Style{}, "38:2::16:32:48", Style{Fg: "#102030"}},
		{"colon 256", Style{}, "48:5:17", Style{Bg: "17"}},
		{"normal intensity", Style{Attrs: Bold | Faint | Italic}, "22", Style{Attrs: Italic}},
		{"default fg keeps bg", Style{Fg: "1", Bg: "2"}, "39", Style{Bg: "2"}},
		{"underline off subparam", Style{Attrs: Underline}, "4:0", Style{}},
		{"private marker ignored", Style{Fg: "3"}, ">4;2", Style{Fg: "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parser{cur: tt.start}
			text, _ := p.Feed([]byte("\x1b[" + tt.params + "m"))
			require.Empty(t, text)
			assert.Equal(t, tt.want, p.Current())
		})
	}
}

func TestParserKeepsNonUTF8Bytes(t *testing.T) {
	var p Parser
	text, per := feedAll(&p, "\xff\xc3A\x1b[32m\x80\xfe\x1b[0m\x9b")

	require.Equal(t, "\xff\xc3A\x80\xfe\x9b", text)
	assert.Equal(t, Style{}, per[2])
	assert.Equal(t, Style{Fg: "2"}, per[3])
	assert.Equal(t, Style{Fg: "2"}, per[4])
	assert.Equal(t, Style{}, per[5])
}

func TestParserHighByteAbortsCSI(t *testing.T) {
	var p Parser
	text, _ := feedAll(&p, "\x1b[3\xe9ok")
	assert.Equal(t, "\xe9ok", text)
	assert.Equal(t, Style{}, p.Current())
}

func TestParserUnterminatedStringIsBounded(t *testing.T) {
	var p Parser
	// "0;" plus the title is one byte over the limit.
	long := "\x1b]0;" + strings.Repeat("t", maxStringLength-1)
	text, _ := feedAll(&p, long, "after")
	assert.Equal(t, "after", text)
}
