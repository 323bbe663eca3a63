package bootstrap

import (
	"errors"
	"time"
)

// OutcomeKind is the terminal classification of a step within a run.
type OutcomeKind string

const (
	OutcomeAlreadySatisfied   OutcomeKind = "already_satisfied"
	OutcomeCompleted          OutcomeKind = "completed"
	OutcomeSkippedRecoverable OutcomeKind = "skipped_recoverable"
	OutcomeFailed             OutcomeKind = "failed"
)

// StepOutcome records exactly one result per step per run.
type StepOutcome struct {
	StepID      StepID        `json:"step_id" yaml:"step_id"`
	Name        string        `json:"name" yaml:"name"`
	Ordinal     int           `json:"ordinal" yaml:"ordinal"`
	Criticality Criticality   `json:"criticality" yaml:"criticality"`
	Kind        OutcomeKind   `json:"outcome" yaml:"outcome"`
	Reason      string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	ErrorCode   ErrorCode     `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Artifacts   []string      `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Attempts    int           `json:"attempts" yaml:"attempts"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	// NotRun marks steps never reached because the run aborted earlier.
	NotRun bool  `json:"not_run,omitempty" yaml:"not_run,omitempty"`
	Err    error `json:"-" yaml:"-"`
}

func outcomeFor(meta StepMetadata, ordinal int, kind OutcomeKind) StepOutcome {
	return StepOutcome{
		StepID:      meta.ID,
		Name:        meta.Name,
		Ordinal:     ordinal,
		Criticality: meta.Criticality,
		Kind:        kind,
	}
}

// AlreadySatisfiedOutcome records a step whose predicate found nothing to do.
func AlreadySatisfiedOutcome(meta StepMetadata, ordinal int, current string) StepOutcome {
	o := outcomeFor(meta, ordinal, OutcomeAlreadySatisfied)
	o.Reason = current
	return o
}

// CompletedOutcome records a successful apply and the artifact keys it produced.
func CompletedOutcome(meta StepMetadata, ordinal int, artifactKeys []string) StepOutcome {
	o := outcomeFor(meta, ordinal, OutcomeCompleted)
	o.Artifacts = artifactKeys
	return o
}

// SkippedOutcome records a best-effort step that failed.
func SkippedOutcome(meta StepMetadata, ordinal int, err error) StepOutcome {
	o := outcomeFor(meta, ordinal, OutcomeSkippedRecoverable)
	o.setError(err)
	return o
}

// FailedOutcome records a fatal failure.
func FailedOutcome(meta StepMetadata, ordinal int, err error) StepOutcome {
	o := outcomeFor(meta, ordinal, OutcomeFailed)
	o.setError(err)
	return o
}

// NotRunOutcome records a step that was never attempted.
func NotRunOutcome(meta StepMetadata, ordinal int, reason string) StepOutcome {
	o := outcomeFor(meta, ordinal, OutcomeFailed)
	o.NotRun = true
	o.Reason = reason
	return o
}

func (o *StepOutcome) setError(err error) {
	if err == nil {
		return
	}
	o.Err = err
	o.Reason = err.Error()
	var typed *Error
	if errors.As(err, &typed) {
		o.ErrorCode = typed.Code
	} else {
		o.ErrorCode = CodeOf(err)
	}
}

// Done reports whether the step ended in a satisfied state.
func (o StepOutcome) Done() bool {
	return o.Kind == OutcomeAlreadySatisfied || o.Kind == OutcomeCompleted
}

// Changed reports whether the step mutated the target.
func (o StepOutcome) Changed() bool {
	return o.Kind == OutcomeCompleted
}
