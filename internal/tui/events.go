package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

var forwardedEvents = []string{
	ports.EventStepStarted,
	ports.EventStepRetrying,
	ports.EventStepCompleted,
	ports.EventStepSkipped,
	ports.EventStepFailed,
	ports.EventRunCompleted,
	ports.EventRunAborted,
	ports.EventProbeCompleted,
}

// Forward subscribes send to every event the model renders. The returned
// func removes the subscriptions.
func Forward(publisher ports.EventPublisher, send func(tea.Msg)) (func(), error) {
	var subs []ports.Subscription
	stop := func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
	handler := func(_ context.Context, event ports.DomainEvent) error {
		if msg, ok := MessageFromEvent(event); ok {
			send(msg)
		}
		return nil
	}
	for _, eventType := range forwardedEvents {
		sub, err := publisher.Subscribe(eventType, handler)
		if err != nil {
			stop()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return stop, nil
}

// MessageFromEvent converts a run or probe event into a model message.
func MessageFromEvent(event ports.DomainEvent) (tea.Msg, bool) {
	if event == nil {
		return nil, false
	}
	p, _ := event.Payload().(map[string]interface{})
	if p == nil {
		return nil, false
	}
	switch event.EventType() {
	case ports.EventStepStarted:
		return StepStartMsg{
			ID:      stepID(p),
			Name:    str(p, "name"),
			Ordinal: integer(p, "ordinal"),
			Time:    timestamp(p, "timestamp"),
		}, true
	case ports.EventStepRetrying:
		return StepRetryMsg{
			ID:      stepID(p),
			Attempt: integer(p, "attempt"),
			Backoff: duration(p, "backoff"),
			Error:   str(p, "error"),
		}, true
	case ports.EventStepCompleted, ports.EventStepSkipped, ports.EventStepFailed:
		return StepDoneMsg{
			ID:       stepID(p),
			Outcome:  str(p, "outcome"),
			Reason:   str(p, "error"),
			Attempts: integer(p, "attempts"),
			Duration: duration(p, "duration"),
		}, true
	case ports.EventRunCompleted:
		return RunFinishedMsg{State: str(p, "state"), ExitCode: integer(p, "exit_code")}, true
	case ports.EventRunAborted:
		return RunFinishedMsg{
			State:     string(bootstrap.StateAborted),
			ExitCode:  integer(p, "exit_code"),
			AbortedAt: stepID(p),
			Reason:    str(p, "reason"),
		}, true
	case ports.EventProbeCompleted:
		return ProbeMsg{Name: str(p, "probe"), Status: str(p, "status"), Code: integer(p, "status_code")}, true
	}
	return nil, false
}

func stepID(p map[string]interface{}) bootstrap.StepID {
	return bootstrap.StepID(str(p, "step_id"))
}

func str(p map[string]interface{}, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case bootstrap.StepID:
		return string(v)
	}
	return ""
}

func integer(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func duration(p map[string]interface{}, key string) time.Duration {
	if d, ok := p[key].(time.Duration); ok {
		return d
	}
	return 0
}

func timestamp(p map[string]interface{}, key string) time.Time {
	if t, ok := p[key].(time.Time); ok {
		return t
	}
	return time.Time{}
}
