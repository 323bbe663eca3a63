package ports

import (
	"context"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// StepContext is what the runner hands each step. Steps must not keep it
// beyond a single Evaluate or Apply call.
type StepContext struct {
	Driver    Driver
	Target    bootstrap.Target
	Session   *bootstrap.Session
	Artifacts *bootstrap.ArtifactSet
	Logger    Logger
}

// Step is one idempotent bootstrap operation.
type Step interface {
	// Metadata describes the step.
	Metadata() bootstrap.StepMetadata

	// Evaluate performs a live read against the target and reports whether
	// Apply is needed. It must never rely on local state from earlier runs.
	Evaluate(ctx context.Context, sc *StepContext) (*bootstrap.Evaluation, error)

	// Apply performs the step and returns the artifacts it produced.
	Apply(ctx context.Context, sc *StepContext, eval *bootstrap.Evaluation) ([]bootstrap.Artifact, error)
}
