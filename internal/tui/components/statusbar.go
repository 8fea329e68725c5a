package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	serial "github.com/allbin/serialterm"
	"github.com/allbin/serialterm/internal/decoder"
	"github.com/allbin/serialterm/internal/stream"
	"github.com/allbin/serialterm/internal/tui/colors"
	"github.com/allbin/serialterm/internal/tui/styles"
)

type ConnectionInfo struct {
	BaudRate    int
	FlowControl serial.FlowControl
	DataBits    int
	StopBits    int
	Parity      serial.Parity
}

type StatusBar struct {
	title          string
	status         stream.Status
	mode           decoder.Mode
	width          int
	connectionInfo *ConnectionInfo
}

func NewStatusBar(title string) *StatusBar {
	return &StatusBar{title: title}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetConnectionInfo(info *ConnectionInfo) {
	sb.connectionInfo = info
}

// SetStatus records the latest connection snapshot.
func (sb *StatusBar) SetStatus(st stream.Status) {
	sb.status = st
	if sb.connectionInfo != nil && st.Port.BaudRate > 0 {
		sb.connectionInfo.BaudRate = st.Port.BaudRate
	}
}

func (sb *StatusBar) Status() stream.Status {
	return sb.status
}

func (sb *StatusBar) SetDefmtMode(mode decoder.Mode) {
	sb.mode = mode
}

func parityToString(p serial.Parity) string {
	switch p {
	case serial.ParityEven:
		return "E"
	case serial.ParityOdd:
		return "O"
	case serial.ParityMark:
		return "M"
	case serial.ParitySpace:
		return "S"
	default:
		return "N"
	}
}

func (sb *StatusBar) indicator() string {
	st := styles.StateStyle(sb.status.State)
	switch sb.status.State {
	case stream.Connected:
		return st.Render("●")
	case stream.Reconnecting:
		since := time.Since(sb.status.PendingSince).Truncate(time.Second)
		return st.Render(fmt.Sprintf("◌ reconnecting %s", since))
	case stream.Connecting:
		return st.Render("○")
	default:
		if sb.status.Err != nil {
			return st.Render("✗")
		}
		return st.Render("○")
	}
}

// ComprehensiveStatusBar renders the bottom bar: input mode, port and
// connection state on the left, line settings, decoding mode and clock on
// the right.
func (sb *StatusBar) ComprehensiveStatusBar(inputMode, sendingMode string, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	modeStyle := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(colors.Blue).
		Bold(true).
		Padding(0, 1)
	if inputMode == "INSERT" {
		modeStyle = modeStyle.Background(colors.Green)
	}
	mode := modeStyle.Render(inputMode)

	portName := sb.status.Port.String()
	if portName == "" {
		portName = sb.title
	}
	port := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(portName)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	left := []string{mode, port, sb.indicator()}
	if inputMode == "INSERT" {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode)))
	}
	left = append(left, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	connInfo := "⚡ serial"
	if sb.connectionInfo != nil {
		connInfo = fmt.Sprintf("⚡ %d baud %d%s%d %s",
			sb.connectionInfo.BaudRate,
			sb.connectionInfo.DataBits,
			parityToString(sb.connectionInfo.Parity),
			sb.connectionInfo.StopBits,
			sb.connectionInfo.FlowControl)
	}
	details := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render(connInfo)

	defmtStyle := lipgloss.NewStyle().Foreground(colors.Overlay1).Padding(0, 1)
	if sb.mode.Decodes() {
		defmtStyle = defmtStyle.Foreground(colors.Teal).Bold(true)
	}
	defmt := defmtStyle.Render("defmt: " + sb.mode.String())

	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, defmt, divider, clock)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	bar := lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth)

	return bar.Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
