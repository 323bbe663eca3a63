package ports

import "context"

const (
	// EventRunStarted is emitted once the preflight probe passed.
	EventRunStarted = "run.started"
	// EventRunCompleted is emitted when a run ends succeeded or partially failed.
	EventRunCompleted = "run.completed"
	// EventRunAborted is emitted when a fatal step stops the run.
	EventRunAborted = "run.aborted"
	// EventStepStarted is emitted before a step's predicate is evaluated.
	EventStepStarted = "step.started"
	// EventStepCompleted is emitted when a step applied or was already satisfied.
	EventStepCompleted = "step.completed"
	// EventStepSkipped is emitted when a best-effort step failed and was skipped.
	EventStepSkipped = "step.skipped"
	// EventStepFailed is emitted when a fatal step failed.
	EventStepFailed = "step.failed"
	// EventStepRetrying is emitted before a transient failure is retried.
	EventStepRetrying = "step.retrying"
	// EventProbeCompleted is emitted after each verifier probe.
	EventProbeCompleted = "probe.completed"
)

// DomainEvent represents a significant occurrence during a run. Events carry
// structured payloads that subscribers use for logging or UI updates.
type DomainEvent interface {
	EventType() string
	Payload() interface{}
}

// EventPublisher distributes events to interested subscribers. Dispatch is
// synchronous: Publish blocks until all handlers run, so progress appears
// before the process exits. Implementations must be thread-safe.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
}

// EventHandler processes an event of a specific type. Failures are returned,
// not panicked, so publishers can log them and keep delivering.
type EventHandler func(context.Context, DomainEvent) error

// Subscription represents a registered handler. Callers must invoke
// Unsubscribe to stop receiving events.
type Subscription interface {
	Unsubscribe()
}
