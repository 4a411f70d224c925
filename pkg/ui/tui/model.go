package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StageState is where a stage is in its run.
type StageState int

const (
	StagePending StageState = iota
	StageActive
	StageCompleted
	StageFailed
)

// StageItem is one row of the stage panel.
type StageItem struct {
	Name     string
	State    StageState
	Current  int
	Total    int
	Message  string
	Started  time.Time
	Finished time.Time
	Err      error
}

// Rate is units per minute since the stage started.
func (s *StageItem) Rate(now time.Time) float64 {
	elapsed := now.Sub(s.Started).Minutes()
	if s.Started.IsZero() || elapsed <= 0 {
		return 0
	}
	return float64(s.Current) / elapsed
}

// ETA extrapolates the current rate over the remaining units; zero when
// unknown.
func (s *StageItem) ETA(now time.Time) time.Duration {
	rate := s.Rate(now)
	if rate <= 0 || s.Total <= s.Current {
		return 0
	}
	return time.Duration(float64(s.Total-s.Current) / rate * float64(time.Minute))
}

// LogMessage is a line of the log panel.
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the dashboard state. bubbletea serialises Update and View, so
// it needs no locking; outside code talks to it through messages.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	stages []*StageItem
	index  map[string]*StageItem
	active *StageItem

	sessionStart    time.Time
	cancelRequested bool
	done            bool
	runErr          error
	onCancel        func()

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	now func() time.Time
}

// NewModel creates a dashboard for the named stages. onCancel runs when the
// user asks to stop the run.
func NewModel(stages []string, onCancel func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	m := &Model{
		spinner:        s,
		bar:            bar,
		index:          make(map[string]*StageItem),
		sessionStart:   time.Now(),
		onCancel:       onCancel,
		maxLogMessages: 50,
		now:            time.Now,
	}
	for _, name := range stages {
		m.addStage(name)
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m *Model) addStage(name string) *StageItem {
	item := &StageItem{Name: name}
	m.stages = append(m.stages, item)
	m.index[name] = item
	return item
}

// StartStage makes name the active stage, adding it when unknown.
func (m *Model) StartStage(name string) {
	item, ok := m.index[name]
	if !ok {
		item = m.addStage(name)
	}
	item.State = StageActive
	item.Started = m.now()
	item.Current, item.Total, item.Message, item.Err = 0, 0, "", nil
	m.active = item
}

// UpdateProgress moves the active stage. Progress arriving before any
// stage started opens the first pending one.
func (m *Model) UpdateProgress(current, total int, message string) {
	if m.active == nil {
		for _, s := range m.stages {
			if s.State == StagePending {
				m.StartStage(s.Name)
				break
			}
		}
	}
	if m.active == nil {
		return
	}
	m.active.Current = current
	if total > 0 {
		m.active.Total = total
	}
	if message != "" {
		m.active.Message = message
	}
}

// FinishStage closes name as completed or failed.
func (m *Model) FinishStage(name string, err error) {
	item, ok := m.index[name]
	if !ok {
		return
	}
	item.Finished = m.now()
	item.Err = err
	if err != nil {
		item.State = StageFailed
	} else {
		item.State = StageCompleted
	}
	if m.active == item {
		m.active = nil
	}
}

// AddLogMessage appends to the log panel, keeping the newest lines.
func (m *Model) AddLogMessage(level, message string) {
	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// RequestCancel asks the run to stop once. Later calls are no-ops.
func (m *Model) RequestCancel() {
	if m.cancelRequested {
		return
	}
	m.cancelRequested = true
	m.AddLogMessage("WARN", "Cancellation requested, stopping after the current batch")
	if m.onCancel != nil {
		m.onCancel()
	}
}

// Stages returns the stage rows in order.
func (m *Model) Stages() []*StageItem { return m.stages }

// Done reports whether the run has finished.
func (m *Model) Done() bool { return m.done }

// Err is the run's final error.
func (m *Model) Err() error { return m.runErr }

func (m *Model) counts() (completed, failed int) {
	for _, s := range m.stages {
		switch s.State {
		case StageCompleted:
			completed++
		case StageFailed:
			failed++
		}
	}
	return completed, failed
}
