package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// StageStartMsg opens a stage.
type StageStartMsg struct {
	Name string
}

// ProgressMsg moves the active stage.
type ProgressMsg struct {
	Current int
	Total   int
	Message string
}

// StageDoneMsg closes a stage; a nil Err means it completed.
type StageDoneMsg struct {
	Name string
	Err  error
}

// LogMsg adds a line to the log panel.
type LogMsg struct {
	Level   string
	Message string
}

// DoneMsg ends the run and quits the program.
type DoneMsg struct {
	Err error
}

// TickMsg refreshes elapsed times and rates.
type TickMsg time.Time

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, m.width/2-20)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case StageStartMsg:
		m.StartStage(msg.Name)
		m.AddLogMessage("INFO", "Starting stage: "+msg.Name)
		return m, nil

	case ProgressMsg:
		m.UpdateProgress(msg.Current, msg.Total, msg.Message)
		return m, nil

	case StageDoneMsg:
		m.FinishStage(msg.Name, msg.Err)
		if msg.Err != nil {
			m.AddLogMessage("ERROR", "Stage "+msg.Name+" failed: "+msg.Err.Error())
		} else {
			m.AddLogMessage("SUCCESS", "Stage "+msg.Name+" completed")
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case DoneMsg:
		m.done = true
		m.runErr = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		m.RequestCancel()
		return m, tea.Quit

	case "c", "C":
		m.RequestCancel()
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
