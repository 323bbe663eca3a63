package bootstrap

import (
	"fmt"
	"time"
)

// StepID names one of the fixed bootstrap steps.
type StepID string

const (
	StepBootstrapAdmin      StepID = "bootstrap-admin"
	StepAuthenticate        StepID = "authenticate"
	StepForwardAuthProvider StepID = "forward-auth-provider"
	StepOutpostAttachment   StepID = "outpost-attachment"
	StepOAuth2Provider      StepID = "oauth2-provider"
	StepApplication         StepID = "application"
)

// Criticality decides whether a failing step aborts the run.
type Criticality string

const (
	Fatal      Criticality = "fatal"
	BestEffort Criticality = "best-effort"
)

// StepMetadata describes a step independently of how it talks to the target.
type StepMetadata struct {
	ID          StepID
	Name        string
	Criticality Criticality
	// RequiresSession steps get a re-established session first if it was
	// invalidated.
	RequiresSession bool
	// EstablishesSession marks the step the runner re-invokes to re-derive a
	// session after a gateway restart.
	EstablishesSession bool
	// RestartsGateway steps invalidate the session once applied.
	RestartsGateway bool
	// Settle is the fixed wait after a successful apply.
	Settle time.Duration
}

// Validate ensures the metadata is internally consistent.
func (m StepMetadata) Validate() error {
	if m.ID == "" {
		return NewValidationError("step id is required", nil)
	}
	if m.Name == "" {
		return NewValidationError("step name is required", map[string]interface{}{"step_id": m.ID})
	}
	switch m.Criticality {
	case Fatal, BestEffort:
	default:
		return NewValidationError(fmt.Sprintf("unknown criticality %q", m.Criticality), map[string]interface{}{"step_id": m.ID})
	}
	if m.Settle < 0 {
		return NewValidationError("settle must not be negative", map[string]interface{}{"step_id": m.ID})
	}
	return nil
}

// Evaluation is the live answer to "is this step needed?".
type Evaluation struct {
	Needed       bool
	CurrentState string
	DesiredState string
	// Artifacts discovered while evaluating, such as the id of a resource
	// that already exists.
	Artifacts []Artifact
	// InternalData is passed from Evaluate to Apply untouched.
	InternalData interface{}
}

// Satisfied builds an evaluation for a step with nothing to do.
func Satisfied(current string, artifacts ...Artifact) *Evaluation {
	return &Evaluation{Needed: false, CurrentState: current, DesiredState: current, Artifacts: artifacts}
}

// Needed builds an evaluation for a step that must apply.
func Needed(current, desired string, data interface{}) *Evaluation {
	return &Evaluation{Needed: true, CurrentState: current, DesiredState: desired, InternalData: data}
}
