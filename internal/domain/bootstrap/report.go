package bootstrap

import (
	"sync"
	"time"
)

// RunState is the runner's position in its state machine.
type RunState string

const (
	StatePending         RunState = "pending"
	StateRunning         RunState = "running"
	StateSucceeded       RunState = "succeeded"
	StatePartiallyFailed RunState = "partially_failed"
	StateAborted         RunState = "aborted"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == StateSucceeded || s == StatePartiallyFailed || s == StateAborted
}

// Exit codes returned by the CLI for each terminal state.
const (
	ExitSucceeded       = 0
	ExitAborted         = 1
	ExitPartiallyFailed = 2
)

// Diagnostic is the snapshot captured when a run aborts.
type Diagnostic struct {
	StepID   StepID   `json:"step_id" yaml:"step_id"`
	Snapshot Snapshot `json:"-" yaml:"-"`
	Kind     string   `json:"kind" yaml:"kind"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`
	Path     string   `json:"path,omitempty" yaml:"path,omitempty"`
}

// RunReport aggregates everything a run produced. It is append-only until
// Finalize is called.
type RunReport struct {
	mu sync.Mutex

	RunID        string
	Driver       string
	Target       string
	Reachability Reachability
	StartedAt    time.Time
	FinishedAt   time.Time
	State        RunState
	Outcomes     []StepOutcome
	Artifacts    *ArtifactSet
	Verification *VerificationSummary
	Diagnostic   *Diagnostic
	AbortReason  string
}

// NewRunReport creates a pending report.
func NewRunReport(runID, driver, target string, startedAt time.Time) *RunReport {
	return &RunReport{
		RunID:        runID,
		Driver:       driver,
		Target:       target,
		Reachability: ReachabilityUnknown,
		StartedAt:    startedAt,
		State:        StatePending,
		Artifacts:    NewArtifactSet(),
	}
}

// Start moves the report into the running state.
func (r *RunReport) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State == StatePending {
		r.State = StateRunning
	}
}

// Record appends an outcome. Recording after Finalize is rejected.
func (r *RunReport) Record(outcome StepOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State.Terminal() {
		return NewValidationError("run report already finalized", map[string]interface{}{
			"step_id": outcome.StepID,
		})
	}
	for _, existing := range r.Outcomes {
		if existing.StepID == outcome.StepID {
			return NewValidationError("step already has an outcome", map[string]interface{}{
				"step_id": outcome.StepID,
			})
		}
	}
	r.Outcomes = append(r.Outcomes, outcome)
	return nil
}

// OutcomeFor returns the recorded outcome of a step.
func (r *RunReport) OutcomeFor(id StepID) (StepOutcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.Outcomes {
		if o.StepID == id {
			return o, true
		}
	}
	return StepOutcome{}, false
}

// SetReachability records the preflight verdict about the target.
func (r *RunReport) SetReachability(reach Reachability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reachability = reach
}

// SetVerification attaches verifier results; allowed after Finalize.
func (r *RunReport) SetVerification(summary *VerificationSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Verification = summary
}

// Finalize computes the terminal state. aborted forces StateAborted.
func (r *RunReport) Finalize(aborted bool, reason string, at time.Time) RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State.Terminal() {
		return r.State
	}
	r.FinishedAt = at
	switch {
	case aborted:
		r.State = StateAborted
		r.AbortReason = reason
	case r.hasSkipLocked():
		r.State = StatePartiallyFailed
	default:
		r.State = StateSucceeded
	}
	return r.State
}

func (r *RunReport) hasSkipLocked() bool {
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeSkippedRecoverable || o.Kind == OutcomeFailed {
			return true
		}
	}
	return false
}

// ExitCode maps the terminal state to a process exit code.
func (r *RunReport) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.State {
	case StateSucceeded:
		return ExitSucceeded
	case StatePartiallyFailed:
		return ExitPartiallyFailed
	default:
		return ExitAborted
	}
}

// Pending returns the outcomes that did not end satisfied, in order.
func (r *RunReport) Pending() []StepOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StepOutcome
	for _, o := range r.Outcomes {
		if !o.Done() {
			out = append(out, o)
		}
	}
	return out
}

// OutcomesCopy returns a copy of the outcomes recorded so far.
func (r *RunReport) OutcomesCopy() []StepOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StepOutcome, len(r.Outcomes))
	copy(out, r.Outcomes)
	return out
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
