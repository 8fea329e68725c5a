package components

import (
	"bytes"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/allbin/serialterm/internal/stream"
	"github.com/allbin/serialterm/internal/style"
)

// DefaultScrollback is the number of lines kept by a Terminal.
const DefaultScrollback = 10000

// Terminal is the scrolling view of a session. Text arrives in runs that
// may end mid-line; the unfinished line stays open until its newline
// arrives or another kind of entry interrupts it.
type Terminal struct {
	viewport   viewport.Model
	formatter  *DataFormatter
	data       []string
	open       bool
	scrollback int
	follow     bool
}

func NewTerminal(width, height int) *Terminal {
	vp := viewport.New(width, height)
	return &Terminal{
		viewport:   vp,
		formatter:  NewDataFormatter(true, true),
		data:       make([]string, 0),
		scrollback: DefaultScrollback,
		follow:     true,
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
	t.refresh()
}

func (t *Terminal) GetViewport() viewport.Model {
	return t.viewport
}

func (t *Terminal) Formatter() *DataFormatter {
	return t.formatter
}

// Lines returns the rendered lines, including an unfinished last line.
func (t *Terminal) Lines() []string {
	return t.data
}

// AddEvent appends a session event.
func (t *Terminal) AddEvent(msg EventMsg) {
	switch ev := msg.Event.(type) {
	case stream.TextRun:
		t.addText(ev)
	case stream.FrameDecoded:
		t.addLine(t.formatter.FormatFrame(msg.Timestamp, ev))
	case stream.FrameError:
		t.addLine(t.formatter.FormatFrameError(msg.Timestamp, ev))
	case stream.ConnectionStatus:
		t.addLine(t.formatter.FormatStatus(msg.Timestamp, ev.Status))
	}
	t.refresh()
}

// AddTransmit appends a line for data sent by the user.
func (t *Terminal) AddTransmit(msg TransmitMsg) {
	t.addLine(t.formatter.FormatTX(msg))
	t.refresh()
}

// AddFormattedMessage appends a prerendered line.
func (t *Terminal) AddFormattedMessage(msg string) {
	t.addLine(msg)
	t.refresh()
}

func (t *Terminal) addText(run stream.TextRun) {
	visible := style.Visible(run.Text, run.Spans)
	if len(visible) == 0 {
		return
	}
	rendered := RenderText(run.Text, run.Spans)
	ended := bytes.HasSuffix(visible, []byte("\n"))

	if t.open && len(t.data) > 0 {
		t.data[len(t.data)-1] += rendered
	} else {
		t.data = append(t.data, rendered)
	}
	t.open = !ended
	t.trim()
}

// addLine appends a line of its own, closing any unfinished text line.
func (t *Terminal) addLine(line string) {
	t.data = append(t.data, line)
	t.open = false
	t.trim()
}

func (t *Terminal) trim() {
	if over := len(t.data) - t.scrollback; over > 0 {
		t.data = append(t.data[:0:0], t.data[over:]...)
	}
}

func (t *Terminal) refresh() {
	t.viewport.SetContent(strings.Join(t.data, "\n"))
	if t.follow {
		t.viewport.GotoBottom()
	}
}

// Follow reports whether the view sticks to the newest line.
func (t *Terminal) Follow() bool {
	return t.follow
}

func (t *Terminal) GotoTop() {
	t.follow = false
	t.viewport.GotoTop()
}

func (t *Terminal) GotoBottom() {
	t.follow = true
	t.viewport.GotoBottom()
}

func (t *Terminal) ScrollUp(n int) {
	t.follow = false
	t.viewport.LineUp(n)
}

func (t *Terminal) ScrollDown(n int) {
	t.viewport.LineDown(n)
	t.follow = t.viewport.AtBottom()
}

func (t *Terminal) Clear() {
	t.data = make([]string, 0)
	t.open = false
	t.viewport.SetContent("")
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
}

func (t *Terminal) ToggleASCII() {
	t.formatter.ToggleASCII()
}

func (t *Terminal) ToggleTimestamps() {
	t.formatter.ToggleTimestamps()
}

func (t *Terminal) GetDisplayMode() DisplayMode {
	return t.formatter.GetDisplayMode()
}

func (t *Terminal) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Key messages are handled by the owning model.
	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		t.follow = t.viewport.AtBottom()
		return t.viewport, cmd
	default:
		return t.viewport, nil
	}
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
