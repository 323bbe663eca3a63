package engine

import (
	"context"
	"sync"
	"time"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

type fakeDriver struct {
	preflightErrs []error
	fetches       int
	closed        bool
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Fetch(_ context.Context, path string) (*bootstrap.Document, error) {
	if path == PreflightPath {
		d.fetches++
		if len(d.preflightErrs) > 0 {
			err := d.preflightErrs[0]
			d.preflightErrs = d.preflightErrs[1:]
			return nil, err
		}
	}
	return &bootstrap.Document{URL: path, Status: 200, ContentType: "application/json", Body: []byte(`{}`)}, nil
}

func (d *fakeDriver) FindField(context.Context, *bootstrap.Document, bootstrap.Field) (bootstrap.FieldHandle, error) {
	return bootstrap.FieldHandle{}, bootstrap.NewSelectorNotFound("any", nil)
}

func (d *fakeDriver) Submit(context.Context, bootstrap.SubmitRequest) (*bootstrap.Document, error) {
	return &bootstrap.Document{Status: 200}, nil
}

func (d *fakeDriver) Snapshot(context.Context) bootstrap.Snapshot {
	return bootstrap.Snapshot{Kind: bootstrap.SnapshotHTML, URL: "http://target/last", Data: []byte("<html></html>"), TakenAt: time.Unix(0, 0)}
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

// fakeStep is a configurable step. By default it is needed until applied.
type fakeStep struct {
	meta      bootstrap.StepMetadata
	done      bool
	evaluate  func(sc *ports.StepContext) (*bootstrap.Evaluation, error)
	apply     func(sc *ports.StepContext) ([]bootstrap.Artifact, error)
	artifacts []bootstrap.Artifact

	evaluations int
	applies     int
}

func newFakeStep(id string, criticality bootstrap.Criticality) *fakeStep {
	return &fakeStep{meta: bootstrap.StepMetadata{
		ID:          bootstrap.StepID(id),
		Name:        "step " + id,
		Criticality: criticality,
	}}
}

func (s *fakeStep) Metadata() bootstrap.StepMetadata { return s.meta }

func (s *fakeStep) Evaluate(_ context.Context, sc *ports.StepContext) (*bootstrap.Evaluation, error) {
	s.evaluations++
	if s.evaluate != nil {
		return s.evaluate(sc)
	}
	if s.done {
		return bootstrap.Satisfied("present", s.artifacts...), nil
	}
	return bootstrap.Needed("absent", "present", nil), nil
}

func (s *fakeStep) Apply(_ context.Context, sc *ports.StepContext, _ *bootstrap.Evaluation) ([]bootstrap.Artifact, error) {
	s.applies++
	if s.apply != nil {
		return s.apply(sc)
	}
	s.done = true
	return s.artifacts, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event ports.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Subscribe(string, ports.EventHandler) (ports.Subscription, error) {
	return nil, nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func testTarget() bootstrap.Target {
	target, err := bootstrap.NewTarget("http://authentik.test", bootstrap.Credentials{Username: "akadmin", Password: "pw"})
	if err != nil {
		panic(err)
	}
	return target
}

func asSteps(steps ...*fakeStep) []ports.Step {
	out := make([]ports.Step, 0, len(steps))
	for _, s := range steps {
		out = append(out, s)
	}
	return out
}

func outcomeKinds(report *bootstrap.RunReport) []bootstrap.OutcomeKind {
	var kinds []bootstrap.OutcomeKind
	for _, o := range report.OutcomesCopy() {
		kinds = append(kinds, o.Kind)
	}
	return kinds
}
