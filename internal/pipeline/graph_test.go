package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubUnit is a configurable unit for graph scheduling tests.
type stubUnit struct {
	name     string
	requires []Field
	produces []Field
	delay    time.Duration
	err      error

	mu      sync.Mutex
	started time.Time
	ended   time.Time
	ran     bool
}

func (s *stubUnit) Name() string      { return s.name }
func (s *stubUnit) Requires() []Field { return s.requires }
func (s *stubUnit) Produces() []Field { return s.produces }

func (s *stubUnit) Run(ctx context.Context, st *State) error {
	s.mu.Lock()
	s.ran = true
	s.started = time.Now()
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.ended = time.Now()
	s.mu.Unlock()
	return s.err
}

func (s *stubUnit) window() (start, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.ended
}

func (s *stubUnit) didRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ran
}

// pipelineStubs builds stub units wired like the production topology:
// entry, a concurrent pair, an AND-join, and a sequential tail.
func pipelineStubs() (entry, left, right, join, tail *stubUnit) {
	entry = &stubUnit{name: "entry", produces: []Field{FieldRequirementsDoc}}
	left = &stubUnit{name: "left", requires: []Field{FieldRequirementsDoc}, produces: []Field{FieldBrandAssets}}
	right = &stubUnit{name: "right", requires: []Field{FieldRequirementsDoc}, produces: []Field{FieldArchitectureMap}}
	join = &stubUnit{name: "join", requires: []Field{FieldBrandAssets, FieldArchitectureMap}, produces: []Field{FieldGeneratedFiles}}
	tail = &stubUnit{name: "tail", requires: []Field{FieldGeneratedFiles}, produces: []Field{FieldMarketingPlan}}
	return
}

func stubsAsUnits(stubs ...*stubUnit) []Unit {
	units := make([]Unit, len(stubs))
	for i, s := range stubs {
		units[i] = s
	}
	return units
}

func TestNewGraphDerivesEdges(t *testing.T) {
	entry, left, right, join, tail := pipelineStubs()
	g, err := NewGraph(stubsAsUnits(entry, left, right, join, tail), nil, nil)
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}

	if g.Size() != 5 {
		t.Errorf("Size() = %d, want 5", g.Size())
	}

	wantDeps := map[string][]string{
		"entry": nil,
		"left":  {"entry"},
		"right": {"entry"},
		"join":  {"left", "right"},
		"tail":  {"join"},
	}
	for name, want := range wantDeps {
		got := g.Dependencies(name)
		if len(got) != len(want) {
			t.Errorf("Dependencies(%q) = %v, want %v", name, got, want)
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Dependencies(%q) = %v, want %v", name, got, want)
				break
			}
		}
	}
}

func TestNewGraphRejectsDuplicateProducer(t *testing.T) {
	a := &stubUnit{name: "a", produces: []Field{FieldRequirementsDoc}}
	b := &stubUnit{name: "b", produces: []Field{FieldRequirementsDoc}}

	_, err := NewGraph(stubsAsUnits(a, b), nil, nil)
	if err == nil {
		t.Fatal("NewGraph accepted two producers for one field")
	}
}

func TestNewGraphRejectsMissingProducer(t *testing.T) {
	a := &stubUnit{name: "a", requires: []Field{FieldBrandAssets}, produces: []Field{FieldRequirementsDoc}}

	_, err := NewGraph(stubsAsUnits(a), nil, nil)
	if err == nil {
		t.Fatal("NewGraph accepted a requirement with no producer")
	}
}

func TestNewGraphRejectsCycle(t *testing.T) {
	a := &stubUnit{name: "a", requires: []Field{FieldBrandAssets}, produces: []Field{FieldRequirementsDoc}}
	b := &stubUnit{name: "b", requires: []Field{FieldRequirementsDoc}, produces: []Field{FieldBrandAssets}}

	_, err := NewGraph(stubsAsUnits(a, b), nil, nil)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("NewGraph error = %v, want ErrCycleDetected", err)
	}
}

func TestExecuteHonorsDependencyOrder(t *testing.T) {
	entry, left, right, join, tail := pipelineStubs()
	for _, s := range []*stubUnit{entry, left, right, join, tail} {
		s.delay = 10 * time.Millisecond
	}

	g, err := NewGraph(stubsAsUnits(entry, left, right, join, tail), nil, nil)
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}
	if err := g.Execute(context.Background(), NewState("idea")); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	_, entryEnd := entry.window()
	leftStart, leftEnd := left.window()
	rightStart, rightEnd := right.window()
	joinStart, joinEnd := join.window()
	tailStart, _ := tail.window()

	if leftStart.Before(entryEnd) || rightStart.Before(entryEnd) {
		t.Error("fan-out branch started before the entry unit finished")
	}
	if joinStart.Before(leftEnd) || joinStart.Before(rightEnd) {
		t.Error("join started before both branches finished")
	}
	if tailStart.Before(joinEnd) {
		t.Error("tail started before the join finished")
	}
}

func TestExecuteRunsBranchesConcurrently(t *testing.T) {
	entry, left, right, join, tail := pipelineStubs()
	left.delay = 50 * time.Millisecond
	right.delay = 50 * time.Millisecond

	g, err := NewGraph(stubsAsUnits(entry, left, right, join, tail), nil, nil)
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}
	if err := g.Execute(context.Background(), NewState("idea")); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	leftStart, leftEnd := left.window()
	rightStart, rightEnd := right.window()

	// Both branches must overlap in time: each starts before the other ends.
	if !leftStart.Before(rightEnd) || !rightStart.Before(leftEnd) {
		t.Errorf("branches did not overlap: left [%v, %v], right [%v, %v]",
			leftStart, leftEnd, rightStart, rightEnd)
	}
}

func TestExecuteFailureStopsScheduling(t *testing.T) {
	entry, left, right, join, tail := pipelineStubs()
	branchErr := errors.New("branch blew up")
	left.err = branchErr
	right.delay = 30 * time.Millisecond

	g, err := NewGraph(stubsAsUnits(entry, left, right, join, tail), nil, nil)
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}

	err = g.Execute(context.Background(), NewState("idea"))
	if !errors.Is(err, branchErr) {
		t.Fatalf("Execute error = %v, want the branch failure", err)
	}

	// The sibling branch was already in flight and finishes.
	if !right.didRun() {
		t.Error("in-flight sibling branch was not allowed to run")
	}
	// Nothing downstream of the failure is scheduled.
	if join.didRun() || tail.didRun() {
		t.Error("downstream units ran after a branch failure")
	}
}

func TestExecuteEmitsRunEvents(t *testing.T) {
	entry, left, right, join, tail := pipelineStubs()

	var mu sync.Mutex
	var types []EventType
	emitter := EmitterFunc(func(e Event) {
		mu.Lock()
		types = append(types, e.Type)
		mu.Unlock()
	})

	g, err := NewGraph(stubsAsUnits(entry, left, right, join, tail), emitter, nil)
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}
	if err := g.Execute(context.Background(), NewState("idea")); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(types) == 0 || types[len(types)-1] != EventRunCompleted {
		t.Errorf("events = %v, want trailing %q", types, EventRunCompleted)
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	entry, left, right, join, tail := pipelineStubs()
	g, err := NewGraph(stubsAsUnits(entry, left, right, join, tail), nil, nil)
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := g.Execute(ctx, NewState("idea")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute error = %v, want context.Canceled", err)
	}
	if entry.didRun() {
		t.Error("unit ran under a canceled context")
	}
}
