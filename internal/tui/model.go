package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/tui/components"
)

// StepStartMsg indicates a step has started executing.
type StepStartMsg struct {
	ID      bootstrap.StepID
	Name    string
	Ordinal int
	Time    time.Time
}

// StepRetryMsg reports that a transient failure is about to be retried.
type StepRetryMsg struct {
	ID      bootstrap.StepID
	Attempt int
	Backoff time.Duration
	Error   string
}

// StepDoneMsg reports a step's outcome.
type StepDoneMsg struct {
	ID       bootstrap.StepID
	Outcome  string
	Reason   string
	Attempts int
	Duration time.Duration
}

// RunFinishedMsg carries the terminal state of the run.
type RunFinishedMsg struct {
	State    string
	ExitCode int
	// AbortedAt is set when a fatal step stopped the run.
	AbortedAt bootstrap.StepID
	Reason    string
}

// ProbeMsg carries one verifier result.
type ProbeMsg struct {
	Name   string
	Status string
	Code   int
}

type tickMsg struct{}

// Model contains the Bubbletea state for a bootstrap run.
type Model struct {
	target         string
	steps          map[bootstrap.StepID]components.StepState
	order          []bootstrap.StepID
	current        bootstrap.StepID
	probes         []components.ProbeStatus
	total          int
	done           int
	skipped        int
	state          string
	exitCode       int
	finished       bool
	cancelled      bool
	nonInteractive bool
}

// NewModel constructs a model listing every step of the run as pending.
func NewModel(target string, metas []bootstrap.StepMetadata, nonInteractive bool) Model {
	m := Model{
		target:         target,
		steps:          make(map[bootstrap.StepID]components.StepState),
		order:          make([]bootstrap.StepID, 0, len(metas)),
		nonInteractive: nonInteractive,
	}
	for i, meta := range metas {
		m.ensureStep(meta.ID, meta.Name, i+1)
	}
	return m
}

// Init starts the Bubbletea program.
func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

// TotalSteps returns the total number of steps tracked by the model.
func (m Model) TotalSteps() int {
	return m.total
}

// DoneSteps returns the number of steps with a final status.
func (m Model) DoneSteps() int {
	return m.done
}

// IsFinished reports whether the run has ended.
func (m Model) IsFinished() bool {
	return m.finished
}

// Cancelled reports whether the user interrupted the run from the
// keyboard.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Step returns the live state of id.
func (m Model) Step(id bootstrap.StepID) components.StepState {
	return m.steps[id]
}

func (m *Model) ensureStep(id bootstrap.StepID, name string, ordinal int) {
	if id == "" {
		return
	}
	if existing, exists := m.steps[id]; exists {
		if existing.Name == "" && name != "" {
			existing.Name = name
			m.steps[id] = existing
		}
		return
	}
	if ordinal == 0 {
		ordinal = len(m.order) + 1
	}
	m.steps[id] = components.StepState{Name: name, Ordinal: ordinal, Status: components.StatusPending}
	m.order = append(m.order, id)
	m.total++
}

// markNotRun closes out the steps an abort left untouched.
func (m *Model) markNotRun() {
	for _, id := range m.order {
		step := m.steps[id]
		if step.Terminal() {
			continue
		}
		step.Status = components.StatusNotRun
		m.steps[id] = step
	}
}
