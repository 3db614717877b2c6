package pipeline

import (
	"time"
)

// EventType represents the type of pipeline telemetry event.
type EventType string

const (
	// EventAgentStarted indicates an agent unit has started its generation call.
	EventAgentStarted EventType = "agent_started"
	// EventAgentCompleted indicates an agent unit completed successfully.
	EventAgentCompleted EventType = "agent_completed"
	// EventAgentFailed indicates an agent unit failed.
	EventAgentFailed EventType = "agent_failed"
	// EventRunCompleted indicates the whole graph finished successfully.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed indicates the graph aborted on a unit failure.
	EventRunFailed EventType = "run_failed"
)

// Event is one telemetry record emitted by the pipeline. Events are
// diagnostic only: nothing in the graph consults them for control decisions.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Agent is the name of the related agent unit, if applicable.
	Agent string
	// Message provides additional context about the event.
	Message string
	// Err contains error details for failure events.
	Err error
	// Duration is the wall-clock time of the unit's execution.
	Duration time.Duration
	// Tokens is the token count consumed by the unit's generation call.
	Tokens int64
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emitter receives pipeline telemetry events.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit calls f(ev).
func (f EmitterFunc) Emit(ev Event) {
	f(ev)
}

// NopEmitter returns an emitter that discards all events.
func NopEmitter() Emitter {
	return EmitterFunc(func(Event) {})
}
