// Package engine sequences bootstrap steps against a target, classifies
// their outcomes and decides whether the run continues.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
	"github.com/alexisbeaulieu97/authboot/pkg/diff"
)

// PreflightPath is fetched before any step to prove the target answers.
const PreflightPath = "/api/v3/root/config/"

// PreflightStepID labels the diagnostic captured when preflight fails.
const PreflightStepID bootstrap.StepID = "preflight"

// Runner executes a fixed, ordered list of steps. A Runner is single-use per
// Run call and owns its driver, session and report for that run.
type Runner struct {
	driver   ports.Driver
	target   bootstrap.Target
	steps    []ports.Step
	settings bootstrap.Settings
	logger   ports.Logger
	events   ports.EventPublisher
	now      func() time.Time
	sleep    SleepFunc
	runID    string
}

// RunnerOption configures a runner instance.
type RunnerOption func(*Runner)

// WithLogger injects a logger into the runner.
func WithLogger(logger ports.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEvents injects an event publisher.
func WithEvents(events ports.EventPublisher) RunnerOption {
	return func(r *Runner) {
		r.events = events
	}
}

// WithSettings overrides retry and settle settings.
func WithSettings(settings bootstrap.Settings) RunnerOption {
	return func(r *Runner) {
		r.settings = settings
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSleeper replaces the context-aware sleep used for settle waits and
// retry backoff.
func WithSleeper(sleep SleepFunc) RunnerOption {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) {
		r.runID = id
	}
}

// NewRunner validates the step list and builds a runner.
func NewRunner(driver ports.Driver, target bootstrap.Target, steps []ports.Step, opts ...RunnerOption) (*Runner, error) {
	if driver == nil {
		return nil, bootstrap.NewValidationError("runner needs a driver", nil)
	}
	if len(steps) == 0 {
		return nil, bootstrap.NewValidationError("runner needs at least one step", nil)
	}
	seen := make(map[bootstrap.StepID]struct{}, len(steps))
	for i, step := range steps {
		if step == nil {
			return nil, bootstrap.NewValidationError("step is nil", map[string]interface{}{"ordinal": i + 1})
		}
		meta := step.Metadata()
		if err := meta.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[meta.ID]; dup {
			return nil, bootstrap.NewValidationError("duplicate step id", map[string]interface{}{"step_id": meta.ID})
		}
		seen[meta.ID] = struct{}{}
	}

	r := &Runner{
		driver:   driver,
		target:   target,
		steps:    steps,
		settings: bootstrap.Settings{},
		logger:   logging.NewNoOpLogger(),
		now:      time.Now,
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.settings = r.settings.ApplyDefaults()
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r, nil
}

// run carries the mutable state of one Run call.
type run struct {
	report  *bootstrap.RunReport
	session *bootstrap.Session
	sc      *ports.StepContext
	// establish is the step that (re)creates the session, if any.
	establish ports.Step
}

// Run executes every step in order and always returns a report, finalized
// as Succeeded, PartiallyFailed or Aborted.
func (r *Runner) Run(ctx context.Context) *bootstrap.RunReport {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = ports.WithCorrelationID(ctx, r.runID)
	logger := r.logger.With("run_id", r.runID, "driver", r.driver.Name())

	report := bootstrap.NewRunReport(r.runID, r.driver.Name(), r.target.BaseURL, r.now())
	report.Start()

	state := &run{report: report, session: &bootstrap.Session{}}
	for _, step := range r.steps {
		if step.Metadata().EstablishesSession {
			state.establish = step
			break
		}
	}

	if err := r.preflight(ctx, logger, report); err != nil {
		r.abort(ctx, logger, state, 0, PreflightStepID, err)
		return report
	}
	state.sc = &ports.StepContext{
		Driver:    r.driver,
		Target:    r.target,
		Session:   state.session,
		Artifacts: report.Artifacts,
		Logger:    logger,
	}

	publishEvent(ctx, r.events, logger, ports.EventRunStarted, map[string]interface{}{
		"run_id":    r.runID,
		"target":    r.target.BaseURL,
		"driver":    r.driver.Name(),
		"steps":     len(r.steps),
		"timestamp": report.StartedAt.UTC(),
	})

	for i, step := range r.steps {
		meta := step.Metadata()
		if err := ctx.Err(); err != nil {
			r.abort(ctx, logger, state, i, meta.ID, bootstrap.NewCancelled(err))
			return report
		}

		outcome := r.runStep(ctx, logger, state, i, step)
		r.record(ctx, logger, report, outcome)

		if outcome.Kind == bootstrap.OutcomeFailed {
			r.abort(ctx, logger, state, i+1, meta.ID, outcome.Err)
			return report
		}
		if outcome.Changed() {
			r.afterApply(ctx, logger, state, meta)
		}
	}

	final := report.Finalize(false, "", r.now())
	logger.Info(ctx, "run finished", "state", final, "duration", report.Duration())
	publishEvent(ctx, r.events, logger, ports.EventRunCompleted, map[string]interface{}{
		"run_id":    r.runID,
		"state":     string(final),
		"exit_code": report.ExitCode(),
		"duration":  report.Duration(),
	})
	return report
}

// preflight records the target's reachability. Transient failures are
// retried with the step retry policy.
func (r *Runner) preflight(ctx context.Context, logger ports.Logger, report *bootstrap.RunReport) error {
	var err error
	for attempt := 1; attempt <= r.settings.Retry.Attempts; attempt++ {
		_, err = r.driver.Fetch(ctx, PreflightPath)
		if err == nil || !bootstrap.IsTransient(err) {
			break
		}
		if attempt == r.settings.Retry.Attempts {
			break
		}
		logger.Warn(ctx, "target not answering, retrying", "attempt", attempt, "error", err)
		if serr := r.sleep(ctx, r.settings.Retry.Backoff(attempt)); serr != nil {
			return bootstrap.NewCancelled(serr)
		}
	}
	if err == nil || (bootstrap.CodeOf(err) == bootstrap.ErrCodeHTTP && !bootstrap.IsTransient(err)) {
		r.target = r.target.WithReachability(bootstrap.ReachabilityReachable)
		report.SetReachability(r.target.Reachability)
		logger.Debug(ctx, "target reachable", "url", r.target.BaseURL)
		return nil
	}
	r.target = r.target.WithReachability(bootstrap.ReachabilityUnreachable)
	report.SetReachability(r.target.Reachability)
	return fmt.Errorf("preflight %s: %w", PreflightPath, err)
}

// runStep re-establishes the session when needed, then executes step with
// retries and classifies the result by criticality.
func (r *Runner) runStep(ctx context.Context, logger ports.Logger, state *run, ordinal int, step ports.Step) bootstrap.StepOutcome {
	meta := step.Metadata()
	logger = logger.With("step_id", meta.ID)
	start := r.now()

	publishEvent(ctx, r.events, logger, ports.EventStepStarted, map[string]interface{}{
		"step_id":     string(meta.ID),
		"name":        meta.Name,
		"ordinal":     ordinal + 1,
		"total":       len(r.steps),
		"criticality": string(meta.Criticality),
		"timestamp":   start.UTC(),
	})

	var outcome bootstrap.StepOutcome
	var err error
	attempts := 0
	if meta.RequiresSession && !state.session.Valid() {
		err = r.reestablish(ctx, logger, state)
	}
	if err == nil {
		outcome, attempts, err = r.withRetry(ctx, logger, meta, func() (bootstrap.StepOutcome, error) {
			return r.attempt(ctx, logger, state, ordinal, step)
		})
	}

	if err != nil {
		if meta.Criticality == bootstrap.BestEffort && ctx.Err() == nil {
			outcome = bootstrap.SkippedOutcome(meta, ordinal+1, err)
		} else {
			outcome = bootstrap.FailedOutcome(meta, ordinal+1, err)
		}
	}
	outcome.Attempts = attempts
	outcome.Duration = r.now().Sub(start)
	return outcome
}

// attempt evaluates the step and applies it only when needed. A conflict
// during Apply re-runs Evaluate; a resource that now exists counts as
// already satisfied.
func (r *Runner) attempt(ctx context.Context, logger ports.Logger, state *run, ordinal int, step ports.Step) (bootstrap.StepOutcome, error) {
	meta := step.Metadata()
	eval, err := step.Evaluate(ctx, state.sc)
	if err != nil {
		return bootstrap.StepOutcome{}, err
	}
	if eval == nil {
		return bootstrap.StepOutcome{}, bootstrap.NewInternal("step returned no evaluation", nil)
	}
	if !eval.Needed {
		logger.Info(ctx, "step already satisfied", "current", eval.CurrentState)
		return r.satisfied(ctx, logger, state, meta, ordinal, eval), nil
	}

	logger.Debug(ctx, "applying step", "plan", diff.Lines(eval.CurrentState, eval.DesiredState, "current", "desired"))
	artifacts, err := step.Apply(ctx, state.sc, eval)
	if errors.Is(err, bootstrap.ErrConflict) {
		logger.Warn(ctx, "apply conflicted, re-evaluating", "error", err)
		recheck, rerr := step.Evaluate(ctx, state.sc)
		if rerr != nil {
			return bootstrap.StepOutcome{}, rerr
		}
		if recheck != nil && !recheck.Needed {
			return r.satisfied(ctx, logger, state, meta, ordinal, recheck), nil
		}
		return bootstrap.StepOutcome{}, err
	}
	if err != nil {
		return bootstrap.StepOutcome{}, err
	}

	keys := r.collect(ctx, logger, state, artifacts)
	logger.Info(ctx, "step completed", "artifacts", keys)
	return bootstrap.CompletedOutcome(meta, ordinal+1, keys), nil
}

func (r *Runner) satisfied(ctx context.Context, logger ports.Logger, state *run, meta bootstrap.StepMetadata, ordinal int, eval *bootstrap.Evaluation) bootstrap.StepOutcome {
	outcome := bootstrap.AlreadySatisfiedOutcome(meta, ordinal+1, eval.CurrentState)
	outcome.Artifacts = r.collect(ctx, logger, state, eval.Artifacts)
	return outcome
}

// collect appends artifacts to the run's set and returns the keys stored.
// Keys already present are kept, so a one-time secret is never replaced.
func (r *Runner) collect(ctx context.Context, logger ports.Logger, state *run, artifacts []bootstrap.Artifact) []string {
	var keys []string
	for _, a := range artifacts {
		if state.report.Artifacts.Add(a) {
			keys = append(keys, a.Key)
			continue
		}
		logger.Debug(ctx, "artifact already recorded", "key", a.Key)
	}
	return keys
}

// reestablish re-runs the session step after a gateway restart dropped the
// session.
func (r *Runner) reestablish(ctx context.Context, logger ports.Logger, state *run) error {
	if state.establish == nil {
		return bootstrap.NewDependencyMissing("no step can establish a session", nil)
	}
	logger.Info(ctx, "re-establishing session", "invalidated_by", state.session.InvalidatedBy())
	_, _, err := r.withRetry(ctx, logger, state.establish.Metadata(), func() (bootstrap.StepOutcome, error) {
		eval, err := state.establish.Evaluate(ctx, state.sc)
		if err != nil || eval == nil || !eval.Needed {
			return bootstrap.StepOutcome{}, err
		}
		_, err = state.establish.Apply(ctx, state.sc, eval)
		return bootstrap.StepOutcome{}, err
	})
	if err != nil {
		return fmt.Errorf("re-establish session: %w", err)
	}
	if !state.session.Valid() {
		return bootstrap.NewDependencyMissing("session could not be re-established", nil)
	}
	return nil
}

// afterApply waits for the target to settle and drops the session when the
// step restarted the gateway.
func (r *Runner) afterApply(ctx context.Context, logger ports.Logger, state *run, meta bootstrap.StepMetadata) {
	if meta.RestartsGateway {
		state.session.Invalidate(string(meta.ID) + " restarted the gateway")
	}
	settle := meta.Settle
	if r.settings.SettleOverride != nil {
		settle = *r.settings.SettleOverride
	}
	if settle <= 0 {
		return
	}
	logger.Debug(ctx, "waiting for target to settle", "step_id", meta.ID, "settle", settle)
	if err := r.sleep(ctx, settle); err != nil {
		logger.Warn(ctx, "settle wait interrupted", "step_id", meta.ID, "error", err)
	}
}

// abort snapshots the driver, records every step from index from onward as
// not run, and finalizes the report.
func (r *Runner) abort(ctx context.Context, logger ports.Logger, state *run, from int, at bootstrap.StepID, cause error) {
	report := state.report
	reason := "aborted"
	if cause != nil {
		reason = cause.Error()
	}

	snap := r.driver.Snapshot(context.WithoutCancel(ctx))
	if !snap.Empty() {
		report.Diagnostic = &bootstrap.Diagnostic{
			StepID:   at,
			Snapshot: snap,
			Kind:     string(snap.Kind),
			URL:      snap.URL,
		}
	}

	notRun := fmt.Sprintf("not run: %s aborted the run", at)
	for i := from; i < len(r.steps); i++ {
		r.record(ctx, logger, report, bootstrap.NotRunOutcome(r.steps[i].Metadata(), i+1, notRun))
	}

	report.Finalize(true, reason, r.now())
	logger.Error(ctx, "run aborted", "step_id", at, "error", cause)
	publishEvent(ctx, r.events, logger, ports.EventRunAborted, map[string]interface{}{
		"run_id":    r.runID,
		"step_id":   string(at),
		"reason":    reason,
		"exit_code": report.ExitCode(),
	})
}

func (r *Runner) record(ctx context.Context, logger ports.Logger, report *bootstrap.RunReport, outcome bootstrap.StepOutcome) {
	if err := report.Record(outcome); err != nil {
		logger.Error(ctx, "failed to record outcome", "step_id", outcome.StepID, "error", err)
		return
	}
	if outcome.NotRun {
		return
	}

	payload := map[string]interface{}{
		"step_id":  string(outcome.StepID),
		"name":     outcome.Name,
		"ordinal":  outcome.Ordinal,
		"total":    len(r.steps),
		"outcome":  string(outcome.Kind),
		"attempts": outcome.Attempts,
		"duration": outcome.Duration,
	}
	switch outcome.Kind {
	case bootstrap.OutcomeSkippedRecoverable:
		payload["error"] = outcome.Reason
		logger.Warn(ctx, "best-effort step skipped", "step_id", outcome.StepID, "error", outcome.Err)
		publishEvent(ctx, r.events, logger, ports.EventStepSkipped, payload)
	case bootstrap.OutcomeFailed:
		payload["error"] = outcome.Reason
		logger.Error(ctx, "step failed", "step_id", outcome.StepID, "error", outcome.Err)
		publishEvent(ctx, r.events, logger, ports.EventStepFailed, payload)
	default:
		payload["changed"] = outcome.Changed()
		publishEvent(ctx, r.events, logger, ports.EventStepCompleted, payload)
	}
}
