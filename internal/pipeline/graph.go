package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCycleDetected indicates a circular dependency between agent units.
var ErrCycleDetected = errors.New("circular dependency detected")

// Graph encodes the fixed dependency topology between agent units and
// executes it with maximal legal concurrency. Edges are derived from field
// ownership: a unit depends on whichever unit produces each field it
// requires, so the write-once invariant is checked at construction time.
type Graph struct {
	units map[string]Unit
	// order preserves registration order so scheduling is deterministic.
	order []string
	// edges maps unit name to the names of units it depends on.
	edges map[string][]string

	events Emitter
	logger *DebugLogger
}

// NewGraph builds the execution graph for the given units.
// It fails if two units claim the same output field, if a required field has
// no producer, or if the derived edges contain a cycle. The graph is built
// per run by the driver; there is no package-level instance.
func NewGraph(units []Unit, events Emitter, logger *DebugLogger) (*Graph, error) {
	if events == nil {
		events = NopEmitter()
	}
	if logger == nil {
		logger = NopLogger()
	}

	g := &Graph{
		units:  make(map[string]Unit, len(units)),
		edges:  make(map[string][]string, len(units)),
		events: events,
		logger: logger,
	}

	// Each field has exactly one owning writer.
	owners := make(map[Field]string)
	for _, u := range units {
		name := u.Name()
		if _, dup := g.units[name]; dup {
			return nil, fmt.Errorf("duplicate unit %q", name)
		}
		g.units[name] = u
		g.order = append(g.order, name)

		for _, f := range u.Produces() {
			if owner, claimed := owners[f]; claimed {
				return nil, fmt.Errorf("field %q claimed by both %q and %q", f, owner, name)
			}
			owners[f] = name
		}
	}

	// Derive edges from required fields to their producers.
	for _, u := range units {
		seen := make(map[string]bool)
		for _, f := range u.Requires() {
			producer, ok := owners[f]
			if !ok {
				return nil, fmt.Errorf("unit %q requires field %q with no producer", u.Name(), f)
			}
			if !seen[producer] {
				seen[producer] = true
				g.edges[u.Name()] = append(g.edges[u.Name()], producer)
			}
		}
	}

	if g.hasCycle() {
		return nil, ErrCycleDetected
	}

	g.logger.Log("[graph] built with %d units", len(g.order))
	return g, nil
}

// hasCycle detects back edges with depth-first coloring.
func (g *Graph) hasCycle() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.units))

	var visit func(name string) bool
	visit = func(name string) bool {
		colors[name] = 1
		for _, dep := range g.edges[name] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[name] = 2
		return false
	}

	for _, name := range g.order {
		if colors[name] == 0 && visit(name) {
			return true
		}
	}
	return false
}

// Size returns the number of units in the graph.
func (g *Graph) Size() int {
	return len(g.order)
}

// Dependencies returns the unit names the given unit depends on.
func (g *Graph) Dependencies(name string) []string {
	return g.edges[name]
}

// ready returns units whose dependencies are all completed, in registration
// order. Independent units returned together form one concurrent wave.
func (g *Graph) ready(completed map[string]bool) []string {
	var out []string
	for _, name := range g.order {
		if completed[name] {
			continue
		}
		ok := true
		for _, dep := range g.edges[name] {
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, name)
		}
	}
	return out
}

// Execute runs every unit against the shared state, honoring the dependency
// order. Independent units run concurrently; a unit never starts before all
// of its predecessors returned successfully. On the first failure no further
// unit is scheduled and the failure surfaces to the caller; units already in
// flight are allowed to finish on their own.
func (g *Graph) Execute(ctx context.Context, st *State) error {
	completed := make(map[string]bool, len(g.order))

	for len(completed) < len(g.order) {
		if err := ctx.Err(); err != nil {
			g.events.Emit(Event{Type: EventRunFailed, Err: err, Timestamp: time.Now()})
			return err
		}

		wave := g.ready(completed)
		if len(wave) == 0 {
			// Unreachable with a valid DAG; guards against a wiring bug.
			err := fmt.Errorf("graph stalled with %d of %d units completed", len(completed), len(g.order))
			g.events.Emit(Event{Type: EventRunFailed, Err: err, Timestamp: time.Now()})
			return err
		}

		g.logger.Log("[graph] wave: %v", wave)

		errs := make([]error, len(wave))
		var wg sync.WaitGroup
		for i, name := range wave {
			wg.Add(1)
			go func(i int, u Unit) {
				defer wg.Done()
				errs[i] = u.Run(ctx, st)
			}(i, g.units[name])
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				g.logger.Log("[graph] unit %s failed: %v", wave[i], err)
				g.events.Emit(Event{Type: EventRunFailed, Agent: wave[i], Err: err, Timestamp: time.Now()})
				return err
			}
		}

		for _, name := range wave {
			completed[name] = true
		}
	}

	g.events.Emit(Event{Type: EventRunCompleted, Timestamp: time.Now()})
	return nil
}
