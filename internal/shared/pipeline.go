package shared

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Step outcomes reported to a StepObserver.
const (
	StepSucceeded = "succeeded"
	StepFailed    = "failed"
)

// StepObserver receives one event per executed step.
type StepObserver interface {
	ObserveStep(pipeline, step, outcome string)
}

// PipelineDeps bundles the collaborators shared by every pipeline run.
type PipelineDeps struct {
	Tracker  ProgressTracker
	Observer StepObserver
	Logger   *slog.Logger
}

// Pipeline runs named steps strictly in order. A failed step stops the run and
// nothing already persisted is undone.
type Pipeline struct {
	name      string
	deps      PipelineDeps
	marker    Marker
	completed []CompletedStep
	failed    bool
}

// StartPipeline claims sourceID for the named pipeline.
func StartPipeline(ctx context.Context, deps PipelineDeps, name, sourceID string) (*Pipeline, error) {
	if deps.Tracker == nil {
		deps.Tracker = NewMemoryProgress()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	marker, err := deps.Tracker.Begin(ctx, name, sourceID)
	if err != nil {
		return nil, err
	}
	return &Pipeline{name: name, deps: deps, marker: marker}, nil
}

// Step executes fn and records its outcome. fn returns the id of the record it wrote.
func (p *Pipeline) Step(ctx context.Context, step string, fn func(context.Context) (string, error)) error {
	recordID, err := fn(ctx)
	if err != nil {
		p.failed = true
		p.observe(step, StepFailed)
		p.marker.FailedStep = step
		p.marker.Error = err.Error()
		p.marker.Completed = p.Completed()
		if ferr := p.deps.Tracker.Fail(ctx, p.marker); ferr != nil {
			p.deps.Logger.Warn("pipeline marker not stored", slog.String("pipeline", p.name), slog.Any("error", ferr))
		}
		p.deps.Logger.Error("pipeline step failed",
			slog.String("pipeline", p.name),
			slog.String("source", p.marker.SourceID),
			slog.String("step", step),
			slog.Int("completed", len(p.completed)),
			slog.Any("error", err))
		return &StepError{Pipeline: p.name, Step: step, Completed: p.Completed(), Err: err}
	}
	p.observe(step, StepSucceeded)
	p.completed = append(p.completed, CompletedStep{Step: step, RecordID: recordID})
	p.marker.Completed = p.Completed()
	if rerr := p.deps.Tracker.Record(ctx, p.marker); rerr != nil {
		p.deps.Logger.Warn("pipeline progress not recorded", slog.String("pipeline", p.name), slog.Any("error", rerr))
	}
	return nil
}

// Completed returns a copy of the steps done so far.
func (p *Pipeline) Completed() []CompletedStep {
	out := make([]CompletedStep, len(p.completed))
	copy(out, p.completed)
	return out
}

// Close releases the claim of a run that did not fail.
func (p *Pipeline) Close(ctx context.Context) {
	if p.failed {
		return
	}
	if err := p.deps.Tracker.Finish(ctx, p.marker); err != nil {
		p.deps.Logger.Warn("pipeline claim not released", slog.String("pipeline", p.name), slog.Any("error", err))
	}
}

func (p *Pipeline) observe(step, outcome string) {
	if p.deps.Observer != nil {
		p.deps.Observer.ObserveStep(p.name, step, outcome)
	}
}

// FirstStepCause strips the pipeline wrapper from a failure of the first
// step, when nothing was persisted yet.
func FirstStepCause(err error) error {
	var stepErr *StepError
	if errors.As(err, &stepErr) && len(stepErr.Completed) == 0 {
		return fmt.Errorf("%s: %w", stepErr.Step, stepErr.Err)
	}
	return err
}
