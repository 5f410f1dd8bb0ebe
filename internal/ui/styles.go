package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - borders, cursor
	SuccessColor = lipgloss.Color("#43BF6D") // Green - ok flash, success
	ErrorColor   = lipgloss.Color("#FF5555") // Red - alert flash, errors
	WarningColor = lipgloss.Color("#FFA500") // Orange - navigation keys
	MutedColor   = lipgloss.Color("#626262") // Gray - empty keys, secondary info
	TextColor    = lipgloss.Color("#FFFFFF")
)

// Layout constants
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100

	// KeyWidth and KeyHeight size one simulated key, borders included.
	KeyWidth  = 12
	KeyHeight = 5
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true).
			PaddingLeft(2)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(2)

	ParamKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(2).
			Width(18)

	ParamValueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(2)
)

// Markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
)

// KeyStyle returns the box style of a simulated key.
func KeyStyle(selected bool, border lipgloss.Color) lipgloss.Style {
	b := lipgloss.RoundedBorder()
	if selected {
		b = lipgloss.ThickBorder()
		border = PrimaryColor
	}
	return lipgloss.NewStyle().
		Border(b).
		BorderForeground(border).
		Width(KeyWidth-2).
		Height(KeyHeight-2).
		Align(lipgloss.Center, lipgloss.Center)
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// GetTerminalWidth returns the current terminal width clamped to the
// supported range.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}
