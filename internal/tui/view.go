package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/authboot/internal/tui/components"
)

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	title := titleStyle.Render(fmt.Sprintf("authboot • %s", m.title()))
	sections = append(sections, title)

	current := ""
	if m.current != "" {
		current = runningStyle.Render(m.steps[m.current].Name)
	}
	progress := components.NewProgress(m.total).View(m.done, current)
	sections = append(sections, sectionStyle.Render("Progress"), progress)

	entries := components.NewStepList(m.order, m.steps).Entries()
	if len(entries) > 0 {
		sections = append(sections, sectionStyle.Render("Steps"))
		sections = append(sections, renderStepEntries(entries))
	}

	summary := components.NewSummary(components.SummaryData{
		Total:     m.total,
		Done:      m.done,
		Skipped:   m.skipped,
		Finished:  m.finished,
		Cancelled: m.cancelled,
		State:     m.state,
		ExitCode:  m.exitCode,
		Probes:    m.probes,
	}).View()
	if strings.TrimSpace(summary) != "" {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(summary))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderStepEntries(entries []components.StepEntry) string {
	var lines []string
	for _, entry := range entries {
		st := entry.State
		name := st.Name
		if name == "" {
			name = string(entry.ID)
		}
		line := fmt.Sprintf(" %s %d. %s", StatusIcon(st.Status), st.Ordinal, name)
		if strings.TrimSpace(st.Message) != "" {
			line = fmt.Sprintf("%s: %s", line, mutedStyle.Render(st.Message))
		}
		if st.Attempts > 1 {
			line = fmt.Sprintf("%s [%d attempts]", line, st.Attempts)
		}
		if st.Duration > 0 {
			line = fmt.Sprintf("%s (%s)", line, st.Duration.Truncate(10*time.Millisecond))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) title() string {
	if strings.TrimSpace(m.target) != "" {
		return m.target
	}
	return "bootstrap"
}

// StatusIcon returns the glyph representing a step status.
func StatusIcon(status string) string {
	switch status {
	case components.StatusCompleted:
		return successStyle.Render("✓")
	case components.StatusSatisfied:
		return successStyle.Render("=")
	case components.StatusRunning:
		return runningStyle.Render("⏳")
	case components.StatusRetrying:
		return retryStyle.Render("↻")
	case components.StatusFailed:
		return failureStyle.Render("✗")
	case components.StatusSkipped:
		return skippedStyle.Render("⊘")
	default:
		return pendingStyle.Render("…")
	}
}
