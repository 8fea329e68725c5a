package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialterm/internal/stream"
	"github.com/allbin/serialterm/internal/style"
	"github.com/allbin/serialterm/internal/tui/colors"
	"github.com/allbin/serialterm/internal/tui/styles"
)

// EventMsg carries one session event into the bubbletea loop.
type EventMsg struct {
	Timestamp time.Time
	Event     stream.Event
}

// TXStatus tracks an outgoing message.
type TXStatus int

const (
	TXPending TXStatus = iota
	TXWritten
	TXFailed
)

// TransmitMsg reports the outcome of a write.
type TransmitMsg struct {
	Timestamp time.Time
	Data      []byte
	Status    TXStatus
	Err       error
}

type DisplayMode struct {
	ShowHex        bool
	ShowASCII      bool
	ShowTimestamps bool
}

// DataFormatter renders the non-text events: frames, frame errors, status
// changes and transmitted data.
type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:        showHex,
			ShowASCII:      showASCII,
			ShowTimestamps: true,
		},
	}
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}

func (df *DataFormatter) ToggleTimestamps() {
	df.mode.ShowTimestamps = !df.mode.ShowTimestamps
}

func (df *DataFormatter) prefix(ts time.Time) string {
	if !df.mode.ShowTimestamps {
		return ""
	}
	return styles.TimestampStyle.Render(fmt.Sprintf("[%s]", ts.Format("15:04:05.000"))) + " "
}

// bytesView shows data as hex and/or ASCII according to the display mode.
func (df *DataFormatter) bytesView(data []byte) string {
	var parts []string
	if df.mode.ShowHex {
		parts = append(parts, fmt.Sprintf("HEX: % X", data))
	}
	if df.mode.ShowASCII {
		var b strings.Builder
		for _, c := range data {
			if c >= 32 && c <= 126 {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		parts = append(parts, "ASCII: "+b.String())
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(data)))
	}
	return strings.Join(parts, "  ")
}

// FormatFrame renders a decoded defmt frame.
func (df *DataFormatter) FormatFrame(ts time.Time, f stream.FrameDecoded) string {
	tag := styles.FrameStyle.Bold(true).Render("◆ defmt")
	return df.prefix(ts) + tag + " " + styles.FrameStyle.Render(df.bytesView(f.Payload))
}

// FormatFrameError renders a frame that failed to decode.
func (df *DataFormatter) FormatFrameError(ts time.Time, f stream.FrameError) string {
	msg := fmt.Sprintf("✗ %s (%d bytes)", f.Description, len(f.Raw))
	return df.prefix(ts) + styles.FrameErrorStyle.Render(msg)
}

// FormatStatus renders a connection state change.
func (df *DataFormatter) FormatStatus(ts time.Time, s stream.Status) string {
	return df.prefix(ts) + styles.StateStyle(s.State).Render("── "+s.String()+" ──")
}

// FormatTX renders data typed by the user.
func (df *DataFormatter) FormatTX(msg TransmitMsg) string {
	var txColor lipgloss.Color
	var statusText string
	switch msg.Status {
	case TXPending:
		txColor, statusText = colors.Yellow, "TX ○"
	case TXWritten:
		txColor, statusText = colors.Green, "TX ✓"
	default:
		txColor, statusText = colors.Red, "TX ✗"
	}
	indicator := lipgloss.NewStyle().Foreground(txColor).Bold(true).Render("↗ " + statusText)

	line := df.prefix(msg.Timestamp) + indicator + ": " + df.bytesView(msg.Data)
	if msg.Err != nil {
		line += " " + styles.FrameErrorStyle.Render(msg.Err.Error())
	}
	return line
}

// RenderText renders the visible part of a text run with its styles.
// Trailing newlines are not included.
func RenderText(text []byte, spans []style.Span) string {
	var b strings.Builder
	for _, sp := range spans {
		if sp.Start >= len(text) {
			break
		}
		end := min(sp.End, len(text))
		chunk := style.Visible(text[sp.Start:end], []style.Span{{Start: 0, End: end - sp.Start, Style: sp.Style}})
		chunk = []byte(strings.TrimRight(string(chunk), "\r\n"))
		if len(chunk) == 0 {
			continue
		}
		if sp.Style.IsZero() {
			b.Write(chunk)
			continue
		}
		b.WriteString(sp.Style.Lipgloss().Render(string(chunk)))
	}
	return b.String()
}
