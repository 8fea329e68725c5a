package style

import (
	"fmt"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/ansi/parser"
)

// maxStringLength bounds OSC, DCS, SOS, PM and APC strings. A longer string
// is dropped and the parser goes back to text.
const maxStringLength = 4096

// Parser interprets ANSI escape sequences in a byte stream. SGR sequences
// update the current style; every other sequence is removed. Sequences may
// be split across Feed calls. The zero Parser is ready to use.
//
// Escape sequences are recognised by an ansi.Parser. Bytes outside a
// sequence are passed through unchanged, so output that is not UTF-8 keeps
// its exact bytes.
type Parser struct {
	vt     *ansi.Parser
	strLen int
	cur    Style
}

// Current returns the style that applies to the next text byte.
func (p *Parser) Current() Style {
	return p.cur
}

// Reset returns the parser to the default style and ground state.
func (p *Parser) Reset() {
	*p = Parser{}
}

func (p *Parser) init() {
	if p.vt != nil {
		return
	}
	p.vt = new(ansi.Parser)
	p.vt.SetParamsSize(parser.MaxParamsSize)
	p.vt.SetDataSize(maxStringLength)
}

// Feed consumes in and returns the printable bytes with their styles.
// The returned spans cover every returned byte.
func (p *Parser) Feed(in []byte) ([]byte, []Span) {
	p.init()
	text := make([]byte, 0, len(in))
	per := make([]Style, 0, len(in))

	for i := 0; i < len(in); i++ {
		b := in[i]
		state := p.vt.State()

		switch {
		case state == parser.GroundState:
			if b != ansi.ESC {
				text = append(text, b)
				per = append(per, p.cur)
				continue
			}
		case isString(state):
			p.strLen++
			if p.strLen > maxStringLength {
				p.vt.Reset()
				continue
			}
		case b != ansi.ESC && (b < 0x20 || b >= 0x80):
			// A control byte aborts the sequence and is kept as text.
			p.vt.Reset()
			i--
			continue
		}

		if !isString(state) {
			p.strLen = 0
		}
		if p.vt.Advance(b) == parser.DispatchAction && isCSI(state) {
			p.csi(ansi.Cmd(p.vt.Command()), p.vt.Params())
		}
		if p.vt.State() == parser.Utf8State {
			// Only reachable through a malformed string; drop it.
			p.vt.Reset()
		}
	}

	return text, Spans(per)
}

func (p *Parser) csi(cmd ansi.Cmd, params ansi.Params) {
	if cmd.Final() != 'm' || cmd.Prefix() != 0 || cmd.Intermediate() != 0 {
		return
	}
	p.cur = applySGR(p.cur, params)
}

func isCSI(s parser.State) bool {
	switch s {
	case parser.CsiEntryState, parser.CsiParamState, parser.CsiIntermediateState:
		return true
	}
	return false
}

func isString(s parser.State) bool {
	switch s {
	case parser.DcsStringState, parser.OscStringState, parser.SosStringState,
		parser.PmStringState, parser.ApcStringState:
		return true
	}
	return false
}

// applySGR applies the parameters of one "CSI ... m" sequence. Parameters
// joined by colons arrive as one group.
func applySGR(s Style, params ansi.Params) Style {
	if len(params) == 0 {
		return Style{}
	}

	for i := 0; i < len(params); i++ {
		if params[i].HasMore() {
			j := i
			for j < len(params)-1 && params[j].HasMore() {
				j++
			}
			s = applySubparams(s, params[i:j+1])
			i = j
			continue
		}

		code := params[i].Param(0)
		switch {
		case code == 0:
			s = Style{}
		case code == 1:
			s.Attrs |= Bold
		case code == 2:
			s.Attrs |= Faint
		case code == 3:
			s.Attrs |= Italic
		case code == 4 || code == 21:
			s.Attrs |= Underline
		case code == 5 || code == 6:
			s.Attrs |= Blink
		case code == 7:
			s.Attrs |= Reverse
		case code == 8:
			s.Attrs |= Conceal
		case code == 9:
			s.Attrs |= Strike
		case code == 22:
			s.Attrs &^= Bold | Faint
		case code == 23:
			s.Attrs &^= Italic
		case code == 24:
			s.Attrs &^= Underline
		case code == 25:
			s.Attrs &^= Blink
		case code == 27:
			s.Attrs &^= Reverse
		case code == 28:
			s.Attrs &^= Conceal
		case code == 29:
			s.Attrs &^= Strike
		case code >= 30 && code <= 37:
			s.Fg = ANSIColor(code - 30)
		case code == 39:
			s.Fg = ""
		case code >= 40 && code <= 47:
			s.Bg = ANSIColor(code - 40)
		case code == 49:
			s.Bg = ""
		case code >= 90 && code <= 97:
			s.Fg = ANSIColor(code - 90 + 8)
		case code >= 100 && code <= 107:
			s.Bg = ANSIColor(code - 100 + 8)
		case code == 38 || code == 48 || code == 58:
			c, used := extendedColor(params[i+1:])
			i += used
			switch code {
			case 38:
				s.Fg = c
			case 48:
				s.Bg = c
			}
		}
	}
	return s
}

// applySubparams handles colon separated forms such as "38:2::255:0:0" and
// "4:0".
func applySubparams(s Style, sub ansi.Params) Style {
	switch sub[0].Param(0) {
	case 4:
		if len(sub) > 1 && sub[1].Param(0) == 0 {
			s.Attrs &^= Underline
		} else {
			s.Attrs |= Underline
		}
	case 38, 48:
		rest := sub[1:]
		// The ITU form carries a color space id before the components.
		if len(rest) == 5 && rest[0].Param(0) == 2 {
			rest = append(ansi.Params{rest[0]}, rest[2:]...)
		}
		c, _ := extendedColor(rest)
		if sub[0].Param(0) == 38 {
			s.Fg = c
		} else {
			s.Bg = c
		}
	}
	return s
}

// extendedColor parses the arguments following 38/48: "5;n" or "2;r;g;b".
// It returns the color and the number of parameters consumed.
func extendedColor(args ansi.Params) (Color, int) {
	if len(args) == 0 {
		return "", 0
	}
	switch args[0].Param(0) {
	case 5:
		if len(args) < 2 {
			return "", len(args)
		}
		n := args[1].Param(0)
		if n < 0 || n > 255 {
			return "", 2
		}
		return ANSIColor(n), 2
	case 2:
		if len(args) < 4 {
			return "", len(args)
		}
		r, g, b := args[1].Param(0), args[2].Param(0), args[3].Param(0)
		return Color(fmt.Sprintf("#%02x%02x%02x", clamp(r), clamp(g), clamp(b))), 4
	default:
		return "", 1
	}
}

func clamp(v int) int {
	return min(max(v, 0), 255)
}
