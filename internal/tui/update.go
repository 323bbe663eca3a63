package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/tui/components"
)

// Update handles Bubbletea messages and updates model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, nil
	case StepStartMsg:
		m.ensureStep(msg.ID, msg.Name, msg.Ordinal)
		step := m.steps[msg.ID]
		step.Status = components.StatusRunning
		step.Message = ""
		m.steps[msg.ID] = step
		m.current = msg.ID
		return m, nil
	case StepRetryMsg:
		m.ensureStep(msg.ID, "", 0)
		step := m.steps[msg.ID]
		step.Status = components.StatusRetrying
		step.Attempts = msg.Attempt
		step.Message = fmt.Sprintf("retry in %s: %s", msg.Backoff, msg.Error)
		m.steps[msg.ID] = step
		return m, nil
	case StepDoneMsg:
		if msg.ID == "" {
			return m, nil
		}
		m.ensureStep(msg.ID, "", 0)
		step := m.steps[msg.ID]
		wasTerminal := step.Terminal()
		step.Status = components.StatusForOutcome(msg.Outcome)
		step.Message = msg.Reason
		step.Attempts = msg.Attempts
		step.Duration = msg.Duration
		m.steps[msg.ID] = step
		if !wasTerminal {
			m.done++
			if step.Status == components.StatusSkipped {
				m.skipped++
			}
		}
		if m.current == msg.ID {
			m.current = ""
		}
		return m, nil
	case RunFinishedMsg:
		m.state = msg.State
		m.exitCode = msg.ExitCode
		m.finished = true
		m.current = ""
		if msg.State == string(bootstrap.StateAborted) {
			m.markNotRun()
		}
		return m, nil
	case ProbeMsg:
		m.probes = append(m.probes, components.ProbeStatus{
			Name:    msg.Name,
			Status:  msg.Status,
			Code:    msg.Code,
			Working: msg.Status == string(bootstrap.ProbeWorking),
		})
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancelled = true
			m.finished = true
			return m, tea.Quit
		}
	case tea.QuitMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}
