package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialterm/internal/stream"
	"github.com/allbin/serialterm/internal/tui/colors"
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	// Status styles
	StatusConnectedStyle = lipgloss.NewStyle().
				Foreground(colors.Green).
				Bold(true)

	StatusDisconnectedStyle = lipgloss.NewStyle().
				Foreground(colors.Red).
				Bold(true)

	StatusConnectingStyle = lipgloss.NewStyle().
				Foreground(colors.Yellow).
				Bold(true)

	StatusReconnectingStyle = lipgloss.NewStyle().
				Foreground(colors.Peach).
				Bold(true)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	// Decoded frame styles
	FrameStyle = lipgloss.NewStyle().
			Foreground(colors.Teal)

	FrameErrorStyle = lipgloss.NewStyle().
			Foreground(colors.Maroon).
			Italic(true)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(colors.Subtext0)

	// Error styles
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red).
			Align(lipgloss.Center)

	// Info styles
	InfoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Align(lipgloss.Center)
)

// StateStyle returns the style for a connection state.
func StateStyle(state stream.State) lipgloss.Style {
	switch state {
	case stream.Connected:
		return StatusConnectedStyle
	case stream.Connecting:
		return StatusConnectingStyle
	case stream.Reconnecting:
		return StatusReconnectingStyle
	default:
		return StatusDisconnectedStyle
	}
}
