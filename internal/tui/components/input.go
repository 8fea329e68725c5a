package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialterm/internal/tui/colors"
	"github.com/allbin/serialterm/internal/tui/styles"
)

const (
	historySize = 100
	inputLimit  = 256

	asciiPlaceholder = "Type message and press Enter to send..."
	hexPlaceholder   = "Enter hex (e.g. 48656C6C6F or 48 65 6C 6C 6F)..."
)

// LineEnding is appended to text sent in ASCII mode.
type LineEnding int

const (
	LineEndingLF LineEnding = iota
	LineEndingCRLF
	LineEndingCR
	LineEndingNone
)

var lineEndings = [...]struct {
	name  string
	bytes string
}{
	LineEndingLF:   {"LF", "\n"},
	LineEndingCRLF: {"CRLF", "\r\n"},
	LineEndingCR:   {"CR", "\r"},
	LineEndingNone: {"none", ""},
}

func (l LineEnding) String() string {
	if l < 0 || int(l) >= len(lineEndings) {
		return lineEndings[LineEndingLF].name
	}
	return lineEndings[l].name
}

// Bytes returns the terminator, nil for LineEndingNone.
func (l LineEnding) Bytes() []byte {
	if l < 0 || int(l) >= len(lineEndings) {
		l = LineEndingLF
	}
	if lineEndings[l].bytes == "" {
		return nil
	}
	return []byte(lineEndings[l].bytes)
}

// ParseLineEnding parses lf, crlf, cr or none. Empty means lf.
func ParseLineEnding(s string) (LineEnding, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LineEndingLF, nil
	}
	for l, e := range lineEndings {
		if strings.EqualFold(s, e.name) {
			return LineEnding(l), nil
		}
	}
	return LineEndingLF, fmt.Errorf("unknown line ending %q (want lf, crlf, cr or none)", s)
}

// SendingMode selects how typed text is turned into bytes.
type SendingMode int

const (
	SendingModeASCII SendingMode = iota
	SendingModeHex
)

func (s SendingMode) String() string {
	if s == SendingModeHex {
		return "HEX"
	}
	return "ASCII"
}

// history is a bounded list of sent lines with a cursor for browsing.
// While browsing, draft holds what was typed before browsing started.
type history struct {
	lines  []string
	cursor int
	draft  string
}

func (h *history) add(line string) {
	h.cursor = -1
	h.draft = ""
	if n := len(h.lines); n > 0 && h.lines[n-1] == line {
		return
	}
	h.lines = append(h.lines, line)
	if over := len(h.lines) - historySize; over > 0 {
		h.lines = h.lines[over:]
	}
}

func (h *history) prev(current string) (string, bool) {
	if len(h.lines) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.draft = current
		h.cursor = len(h.lines) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.lines[h.cursor], true
}

func (h *history) next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	if h.cursor < len(h.lines)-1 {
		h.cursor++
		return h.lines[h.cursor], true
	}
	line := h.draft
	h.cursor = -1
	h.draft = ""
	return line, true
}

// Input is the single line editor below the terminal.
type Input struct {
	textInput textinput.Model
	mode      SendingMode
	history   history
	width     int
}

func NewInput() *Input {
	ti := textinput.New()
	ti.Placeholder = asciiPlaceholder
	ti.CharLimit = inputLimit
	ti.Prompt = ""

	return &Input{
		textInput: ti,
		history:   history{cursor: -1},
	}
}

// SetWidth sizes the editor for a terminal of the given width.
func (i *Input) SetWidth(width int) {
	i.width = width
	// border, padding, prompt and the space after it
	i.textInput.Width = max(width-6, 20)
}

func (i *Input) Focus() {
	i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

func (i *Input) SendingMode() SendingMode {
	return i.mode
}

func (i *Input) ToggleSendingMode() {
	if i.mode == SendingModeASCII {
		i.mode = SendingModeHex
		i.textInput.Placeholder = hexPlaceholder
		return
	}
	i.mode = SendingModeASCII
	i.textInput.Placeholder = asciiPlaceholder
}

// Remember records a sent line. Blank lines and repeats of the last line
// are skipped.
func (i *Input) Remember(line string) {
	if line = strings.TrimSpace(line); line != "" {
		i.history.add(line)
	}
}

// HistoryPrev replaces the value with the previous sent line.
func (i *Input) HistoryPrev() {
	if line, ok := i.history.prev(i.textInput.Value()); ok {
		i.textInput.SetValue(line)
	}
}

// HistoryNext moves forward through the sent lines, ending at the text that
// was being typed.
func (i *Input) HistoryNext() {
	if line, ok := i.history.next(); ok {
		i.textInput.SetValue(line)
	}
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

// View renders the editor in insert mode and a hint otherwise.
func (i *Input) View(insert bool) string {
	prompt := lipgloss.NewStyle().Foreground(colors.Green).Bold(true).Render(">")
	if i.mode == SendingModeHex {
		prompt = lipgloss.NewStyle().Foreground(colors.Yellow).Bold(true).Render("#")
	}

	body := lipgloss.NewStyle().Foreground(colors.Overlay0).Render("Press 'i' to enter insert mode")
	if insert {
		body = i.textInput.View()
	}

	box := styles.InputStyle.
		Width(max(i.width-4, 10)).
		AlignHorizontal(lipgloss.Left)
	if insert {
		box = box.BorderForeground(colors.Green)
	}
	return box.Render(lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", body))
}
