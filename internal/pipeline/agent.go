package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shayc/genesis/internal/api"
)

// Generator is the generation backend surface an agent unit consumes.
// *api.Client satisfies it; tests substitute canned implementations.
type Generator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, api.Usage, error)
	GenerateJSON(ctx context.Context, system, prompt string, out any) (api.Usage, error)
}

// Unit is one discrete generation step with a fixed prompt contract and
// declared state inputs/outputs. A unit reads only its required fields,
// issues exactly one generation call, and writes exactly the fields it owns
// plus a history entry. Units never retry and never substitute defaults:
// any call failure aborts the run.
type Unit interface {
	// Name identifies the unit in telemetry, history, and logs.
	Name() string
	// Requires lists the state fields that must be populated before Run.
	Requires() []Field
	// Produces lists the state fields this unit writes.
	Produces() []Field
	// Run executes the unit against the shared state.
	Run(ctx context.Context, st *State) error
}

// unit carries the collaborators shared by all six agent implementations.
type unit struct {
	gen    Generator
	events Emitter
	logger *DebugLogger
}

func newUnit(gen Generator, events Emitter, logger *DebugLogger) unit {
	if events == nil {
		events = NopEmitter()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return unit{gen: gen, events: events, logger: logger}
}

// begin emits the started event and returns the start time.
func (u *unit) begin(name string) time.Time {
	u.logger.Log("[%s] starting", name)
	u.events.Emit(Event{
		Type:      EventAgentStarted,
		Agent:     name,
		Timestamp: time.Now(),
	})
	return time.Now()
}

// finish records timing/token bookkeeping and emits the terminal event.
// It returns err unchanged so callers can write `return u.finish(...)`.
func (u *unit) finish(st *State, name string, start time.Time, usage api.Usage, err error) error {
	elapsed := time.Since(start)
	st.RecordAgent(name, elapsed, usage.Total())

	if err != nil {
		u.logger.Log("[%s] failed after %s: %v", name, elapsed.Round(time.Millisecond), err)
		u.events.Emit(Event{
			Type:      EventAgentFailed,
			Agent:     name,
			Err:       err,
			Duration:  elapsed,
			Tokens:    usage.Total(),
			Timestamp: time.Now(),
		})
		return fmt.Errorf("%s: %w", name, err)
	}

	u.logger.Log("[%s] completed in %s (%d tokens)", name, elapsed.Round(time.Millisecond), usage.Total())
	u.events.Emit(Event{
		Type:      EventAgentCompleted,
		Agent:     name,
		Duration:  elapsed,
		Tokens:    usage.Total(),
		Timestamp: time.Now(),
	})
	return nil
}

// record appends the prompt/response pair for a unit to the run history.
func record(st *State, agent, prompt, response string) {
	now := time.Now()
	st.AppendHistory(Exchange{Agent: agent, Role: "user", Content: prompt, At: now})
	st.AppendHistory(Exchange{Agent: agent, Role: "assistant", Content: response, At: now})
}

// requireFields guards a unit against running before its upstream fields
// are populated. The graph ordering makes this unreachable; tripping it
// means the topology itself is miswired.
func requireFields(st *State, name string, fields ...Field) error {
	for _, f := range fields {
		if !st.Has(f) {
			return fmt.Errorf("%s: required field %q not populated", name, f)
		}
	}
	return nil
}

// truncate bounds upstream documents before they are embedded in a prompt.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
