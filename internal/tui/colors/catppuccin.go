// Package colors holds the Catppuccin Mocha shades used by the UI chrome.
// Device output keeps the colors the device and the color rules ask for.
package colors

import "github.com/charmbracelet/lipgloss"

// Background and text shades.
var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Surface2 = lipgloss.Color("#585b70")
	Overlay0 = lipgloss.Color("#6c7086")
	Overlay1 = lipgloss.Color("#7f849c")
	Subtext0 = lipgloss.Color("#a6adc8")
	Subtext1 = lipgloss.Color("#bac2de")
	Text     = lipgloss.Color("#cdd6f4")
)

// Accents. Connection states use Green (connected), Yellow (connecting),
// Peach (reconnecting) and Red (disconnected); defmt frames use Teal and
// frame errors Maroon.
var (
	Blue   = lipgloss.Color("#89b4fa")
	Teal   = lipgloss.Color("#94e2d5")
	Green  = lipgloss.Color("#a6e3a1")
	Yellow = lipgloss.Color("#f9e2af")
	Peach  = lipgloss.Color("#fab387")
	Maroon = lipgloss.Color("#eba0ac")
	Red    = lipgloss.Color("#f38ba8")
	Mauve  = lipgloss.Color("#cba6f7")
)
