package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const logo = `
╔═══════════════════════════════════════════════════════════╗
║ ███████╗███╗   ██╗██████╗ ██╗ ██████╗██╗  ██╗███████╗██████╗ ║
║ ██╔════╝████╗  ██║██╔══██╗██║██╔════╝██║  ██║██╔════╝██╔══██╗║
║ █████╗  ██╔██╗ ██║██████╔╝██║██║     ███████║█████╗  ██████╔╝║
║ ██╔══╝  ██║╚██╗██║██╔══██╗██║██║     ██╔══██║██╔══╝  ██╔══██╗║
║ ███████╗██║ ╚████║██║  ██║██║╚██████╗██║  ██║███████╗██║  ██║║
║ ╚══════╝╚═╝  ╚═══╝╚═╝  ╚═╝╚═╝ ╚═════╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝║
║          AIRTABLE / LINKEDIN PROFILE ENRICHMENT           ║
╚═══════════════════════════════════════════════════════════╝`

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	width := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderStagesPanel(width),
	)
	main := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", m.renderLogsPanel(width))

	sections := []string{logoStyle.Width(m.width).Render(logo), main}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("c cancel • q quit • ? help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	now := m.now()
	completed, failed := m.counts()

	stats := []string{
		stat("Session Time:", formatDuration(now.Sub(m.sessionStart))),
		stat("Stages:", fmt.Sprintf("%d/%d completed", completed, len(m.stages))),
	}
	if failed > 0 {
		stats = append(stats, errorStyle.Render(fmt.Sprintf("✗ %d failed", failed)))
	}
	if a := m.active; a != nil {
		stats = append(stats,
			stat("Rate:", fmt.Sprintf("%.1f/min", a.Rate(now))),
			stat("ETA:", formatDuration(a.ETA(now))),
		)
	}
	switch {
	case m.done && m.runErr != nil:
		stats = append(stats, errorStyle.Render("✗ "+m.runErr.Error()))
	case m.done:
		stats = append(stats, successStyle.Render("✓ Pipeline finished"))
	case m.cancelRequested:
		stats = append(stats, warningStyle.Render("⏹  CANCELLING"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(" PIPELINE "), strings.Join(stats, "\n")),
	)
}

func (m *Model) renderStagesPanel(width int) string {
	var rows []string
	for _, s := range m.stages {
		rows = append(rows, m.renderStage(s))
	}
	if len(rows) == 0 {
		rows = append(rows, lipgloss.NewStyle().Foreground(dimWhite).Render("No stages"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(" STAGES "), strings.Join(rows, "\n")),
	)
}

func (m *Model) renderStage(s *StageItem) string {
	switch s.State {
	case StageActive:
		line := stageActiveStyle.Render(m.spinner.View() + " " + s.Name)
		if s.Total > 0 {
			ratio := float64(s.Current) / float64(s.Total)
			line += fmt.Sprintf(" %d/%d\n  %s", s.Current, s.Total, m.bar.ViewAs(min(ratio, 1)))
		}
		if s.Message != "" {
			line += "\n  " + logMessageStyle.Render(s.Message)
		}
		return line
	case StageCompleted:
		return stageDoneStyle.Render(fmt.Sprintf("✓ %s (%s)", s.Name, formatDuration(s.Finished.Sub(s.Started))))
	case StageFailed:
		return errorStyle.PaddingLeft(2).Render("✗ " + s.Name)
	default:
		return stagePendingStyle.Render("• " + s.Name)
	}
}

func (m *Model) renderLogsPanel(width int) string {
	start := max(0, len(m.logMessages)-10)

	var logs []string
	for _, l := range m.logMessages[start:] {
		message := l.Message
		if limit := width - 25; limit > 3 && len(message) > limit {
			message = message[:limit-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(l.Time.Format("15:04:05")),
			lipgloss.NewStyle().Foreground(l.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", l.Level)),
			logMessageStyle.Render(message),
		))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	return panelStyle.Width(width).Height(max(5, m.height-20)).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(" LOGS "), content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    c        - Cancel the run after the current batch
    q        - Cancel and quit
    ctrl+l   - Clear logs
    ?        - Toggle this help

  Stages:
    ` + successStyle.Render("Green") + `    - Running
    ` + errorStyle.Render("Red") + `      - Failed
    ✓        - Completed
    •        - Pending
`
	return panelStyle.Width(m.width).Render(help)
}

func stat(label, value string) string {
	return statsLabelStyle.Render(label) + " " + statsValueStyle.Render(value)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
