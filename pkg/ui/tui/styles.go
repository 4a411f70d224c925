package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonOrange  = lipgloss.Color("#FF6700")
	alertRed    = lipgloss.Color("#FF0000")
	darkBg      = lipgloss.Color("#0A0E27")
	panelBg     = lipgloss.Color("#1A1E37")
	dimWhite    = lipgloss.Color("#B0B0B0")
	faintGrey   = lipgloss.Color("#666666")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func bold(c lipgloss.Color) lipgloss.Style { return fg(c).Bold(true) }

var (
	baseStyle = fg(dimWhite).Background(darkBg)
	logoStyle = bold(neonCyan).Padding(1, 0).Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(neonMagenta).
			Background(panelBg).
			Padding(1, 2)
	titleStyle = bold(darkBg).Background(neonMagenta).Padding(0, 1)

	statsLabelStyle = bold(neonCyan)
	statsValueStyle = fg(neonYellow)

	successStyle = bold(neonGreen)
	errorStyle   = bold(alertRed)
	warningStyle = bold(neonOrange)

	stagePendingStyle = fg(dimWhite).PaddingLeft(2)
	stageActiveStyle  = bold(neonGreen).PaddingLeft(2)
	stageDoneStyle    = fg(dimWhite).Faint(true).PaddingLeft(2)

	logTimestampStyle = fg(faintGrey)
	logMessageStyle   = fg(dimWhite)
	helpStyle         = fg(lipgloss.Color("#626262")).Padding(1, 0, 0, 2)
)

func levelColor(level string) lipgloss.Color {
	switch level {
	case "ERROR":
		return alertRed
	case "WARN", "WARNING":
		return neonOrange
	case "SUCCESS":
		return neonGreen
	case "INFO":
		return neonCyan
	default:
		return dimWhite
	}
}
