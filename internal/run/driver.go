// Package run drives one pipeline execution end to end: it creates the run
// record, builds and executes the agent graph, exports the artifact bundle,
// and keeps the record store in sync with the outcome.
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shayc/genesis/internal/export"
	"github.com/shayc/genesis/internal/pipeline"
	"github.com/shayc/genesis/internal/store"
)

// Options configures a Driver.
type Options struct {
	// Generator is the generation backend shared by all agent units.
	Generator pipeline.Generator
	// Store persists run records and artifact descriptors.
	Store *store.DB
	// Exporter writes the artifact bundle of a completed run.
	Exporter *export.Writer
	// Events receives pipeline telemetry. Optional.
	Events pipeline.Emitter
	// Logger receives debug traces. Optional.
	Logger *pipeline.DebugLogger
	// InstallGuide includes the terminal onboarding unit in the graph.
	InstallGuide bool
	// SignalDir, when set, enables the stop-signal watcher rooted there.
	SignalDir string
}

// Driver orchestrates one run at a time against a record store.
type Driver struct {
	gen          pipeline.Generator
	db           *store.DB
	exporter     *export.Writer
	events       pipeline.Emitter
	logger       *pipeline.DebugLogger
	installGuide bool
	signalDir    string
}

// Result summarizes a completed run.
type Result struct {
	RunID     string
	State     *pipeline.State
	Artifacts []export.Descriptor
	Duration  time.Duration
}

// NewDriver creates a driver from options. Generator, Store, and Exporter
// are required.
func NewDriver(opts Options) (*Driver, error) {
	if opts.Generator == nil {
		return nil, errors.New("driver requires a generator")
	}
	if opts.Store == nil {
		return nil, errors.New("driver requires a record store")
	}
	if opts.Exporter == nil {
		return nil, errors.New("driver requires an exporter")
	}

	events := opts.Events
	if events == nil {
		events = pipeline.NopEmitter()
	}
	logger := opts.Logger
	if logger == nil {
		logger = pipeline.NopLogger()
	}

	return &Driver{
		gen:          opts.Generator,
		db:           opts.Store,
		exporter:     opts.Exporter,
		events:       events,
		logger:       logger,
		installGuide: opts.InstallGuide,
		signalDir:    opts.SignalDir,
	}, nil
}

// Run executes the pipeline for a new idea. Creating the run record is a
// precondition: if the store cannot persist it, nothing is generated. On
// any later failure the record is marked failed best-effort and the
// original error is returned.
func (d *Driver) Run(ctx context.Context, idea string) (*Result, error) {
	rec := &store.Run{ID: uuid.NewString(), Idea: idea}
	if err := d.db.CreateRun(rec); err != nil {
		return nil, fmt.Errorf("create run record: %w", err)
	}
	d.logger.Log("[driver] run %s created for idea %q", rec.ID, idea)

	res, err := d.execute(ctx, rec.ID, idea)
	if err != nil {
		d.markFailed(rec.ID, err)
		return nil, err
	}
	return res, nil
}

// Rerun executes the pipeline again for a previously recorded idea. The
// prior record is reused: its status transitions back through running, and
// fresh artifact descriptors are appended.
func (d *Driver) Rerun(ctx context.Context, runID string) (*Result, error) {
	rec, err := d.db.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	d.logger.Log("[driver] rerunning %s for idea %q", rec.ID, rec.Idea)

	res, err := d.execute(ctx, rec.ID, rec.Idea)
	if err != nil {
		d.markFailed(rec.ID, err)
		return nil, err
	}
	return res, nil
}

// execute performs the run body: graph construction, execution, export,
// and the completed-status transition.
func (d *Driver) execute(ctx context.Context, runID, idea string) (*Result, error) {
	if err := d.db.UpdateRunStatus(runID, store.RunRunning); err != nil {
		// The run can still produce artifacts; the record just lags.
		d.logger.Log("[driver] mark running failed for %s: %v", runID, err)
	}

	if d.signalDir != "" {
		watcher, err := NewStopWatcher(d.signalDir)
		if err != nil {
			d.logger.Log("[driver] stop-signal watcher unavailable: %v", err)
		} else {
			defer watcher.Close()
			var cancel context.CancelFunc
			ctx, cancel = watcher.Watch(ctx)
			defer cancel()
		}
	}

	st := pipeline.NewState(idea)
	st.MarkStarted()

	graph, err := pipeline.NewGraph(d.units(), d.events, d.logger)
	if err != nil {
		return nil, fmt.Errorf("build pipeline graph: %w", err)
	}

	if err := graph.Execute(ctx, st); err != nil {
		return nil, err
	}
	st.MarkFinished()

	descriptors, err := d.exporter.Write(st)
	if err != nil {
		return nil, fmt.Errorf("export artifacts: %w", err)
	}

	for _, desc := range descriptors {
		a := &store.Artifact{RunID: runID, Type: desc.Type, Path: desc.Path}
		if err := d.db.AttachArtifact(a); err != nil {
			return nil, err
		}
	}

	if err := d.db.UpdateRunStatus(runID, store.RunCompleted); err != nil {
		return nil, err
	}

	meta := st.Meta()
	return &Result{
		RunID:     runID,
		State:     st,
		Artifacts: descriptors,
		Duration:  meta.FinishedAt.Sub(meta.StartedAt),
	}, nil
}

// units assembles the agent roster in registration order. The onboarding
// writer is the only optional unit; everything upstream always runs.
func (d *Driver) units() []pipeline.Unit {
	units := []pipeline.Unit{
		pipeline.NewRequirementsDrafter(d.gen, d.events, d.logger),
		pipeline.NewBrandDesigner(d.gen, d.events, d.logger),
		pipeline.NewArchitecturePlanner(d.gen, d.events, d.logger),
		pipeline.NewCodeGenerator(d.gen, d.events, d.logger),
		pipeline.NewMarketingStrategist(d.gen, d.events, d.logger),
	}
	if d.installGuide {
		units = append(units, pipeline.NewOnboardingWriter(d.gen, d.events, d.logger))
	}
	return units
}

// markFailed transitions the record to failed. The transition is
// best-effort: a store error here must not mask the run failure, so it is
// logged and swallowed.
func (d *Driver) markFailed(runID string, cause error) {
	if err := d.db.UpdateRunStatus(runID, store.RunFailed); err != nil {
		d.logger.Log("[driver] mark failed for %s: %v (run error: %v)", runID, err, cause)
	}
}
