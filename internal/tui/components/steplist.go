package components

import (
	"time"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// Step statuses shown while a run is in progress.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusRetrying  = "retrying"
	StatusCompleted = "completed"
	StatusSatisfied = "satisfied"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusNotRun    = "not_run"
)

// StepState is the live view of a single step.
type StepState struct {
	Name     string
	Ordinal  int
	Status   string
	Message  string
	Attempts int
	Duration time.Duration
}

// Terminal reports whether the step has reached its final status.
func (s StepState) Terminal() bool {
	switch s.Status {
	case StatusCompleted, StatusSatisfied, StatusSkipped, StatusFailed, StatusNotRun:
		return true
	}
	return false
}

// StatusForOutcome maps an outcome kind onto a display status.
func StatusForOutcome(kind string) string {
	switch bootstrap.OutcomeKind(kind) {
	case bootstrap.OutcomeCompleted:
		return StatusCompleted
	case bootstrap.OutcomeAlreadySatisfied:
		return StatusSatisfied
	case bootstrap.OutcomeSkippedRecoverable:
		return StatusSkipped
	case bootstrap.OutcomeFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// StepEntry represents a single step for rendering.
type StepEntry struct {
	ID    bootstrap.StepID
	State StepState
}

// StepList renders a list of steps with their current status.
type StepList struct {
	entries []StepEntry
}

// NewStepList constructs a step list component.
func NewStepList(order []bootstrap.StepID, steps map[bootstrap.StepID]StepState) StepList {
	entries := make([]StepEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, StepEntry{ID: id, State: steps[id]})
	}
	return StepList{entries: entries}
}

// Entries returns the ordered step entries.
func (s StepList) Entries() []StepEntry {
	clone := make([]StepEntry, len(s.entries))
	copy(clone, s.entries)
	return clone
}
