package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI is a full-screen stage dashboard. It satisfies pipeline.Reporter and
// pipeline.StageObserver, so it can be handed straight to a pipeline run.
type TUI struct {
	program *tea.Program
	model   *Model
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a dashboard for the given stages. The returned context is
// cancelled when the user asks to stop.
func New(ctx context.Context, stages []string, opts ...tea.ProgramOption) *TUI {
	ctx, cancel := context.WithCancel(ctx)
	model := NewModel(stages, cancel)
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run blocks until the user quits or Finish is called.
func (t *TUI) Run() error {
	_, err := t.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Stop quits the program without waiting for the run.
func (t *TUI) Stop() {
	t.program.Quit()
}

// Context is cancelled once the user cancels.
func (t *TUI) Context() context.Context { return t.ctx }

// Finish reports the run's outcome and closes the dashboard.
func (t *TUI) Finish(err error) {
	t.program.Send(DoneMsg{Err: err})
}

func (t *TUI) Cancelled() bool { return t.ctx.Err() != nil }

func (t *TUI) Done() <-chan struct{} { return t.ctx.Done() }

func (t *TUI) Progress(current, total int, message string) {
	t.program.Send(ProgressMsg{Current: current, Total: total, Message: message})
}

func (t *TUI) Log(level, message string) {
	t.program.Send(LogMsg{Level: level, Message: message})
}

func (t *TUI) StageStarted(stage string) {
	t.program.Send(StageStartMsg{Name: stage})
}

func (t *TUI) StageFinished(stage string, err error) {
	t.program.Send(StageDoneMsg{Name: stage, Err: err})
}
