// Package pipeline sequences the build stages: a directed acyclic graph
// of stages executed strictly one at a time, in dependency order, with
// the first failure aborting the whole run. Nothing is retried and no
// stage output is published after a failure; retry policy belongs to
// whatever invoked the build.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dockhand-build/dockhand/internal/engine"
	"github.com/dockhand-build/dockhand/internal/manifest"
	"github.com/dockhand-build/dockhand/internal/recipe"
)

// Stage is one node of the build graph.
type Stage interface {
	// Name uniquely identifies the stage within a graph.
	Name() string

	// Deps names the stages that must complete before this one starts.
	Deps() []string

	// Run executes the stage against the shared build state. Any error
	// is terminal for the whole pipeline.
	Run(ctx context.Context, b *Build) error
}

// Build is the shared state threaded through the stages of one run.
// Earlier stages populate fields later stages consume; the flow is
// strictly one-directional.
type Build struct {
	// ID uniquely identifies this run.
	ID string

	// Dir is the project root; Recipe.Context is resolved against it.
	Dir string

	Recipe *recipe.Recipe
	Engine engine.Engine
	Log    *zap.Logger

	// Manifest is set by the resolve stage.
	Manifest *manifest.Manifest

	// Containerfile is the rendered build file, set by the assemble
	// stage before the engine runs.
	Containerfile []byte

	// ContainerfilePath is where the rendered file was published. Only
	// set once the build has succeeded.
	ContainerfilePath string

	// ImageRef is the full reference of the built image.
	ImageRef string

	StartedAt time.Time
}

// NewBuild creates the shared state for one pipeline run.
func NewBuild(dir string, r *recipe.Recipe, eng engine.Engine, log *zap.Logger) *Build {
	if log == nil {
		log = zap.NewNop()
	}
	return &Build{
		ID:        uuid.NewString(),
		Dir:       dir,
		Recipe:    r,
		Engine:    eng,
		Log:       log,
		StartedAt: time.Now(),
	}
}

// EventType classifies runner notifications.
type EventType string

const (
	EventStageStarted  EventType = "stage_started"
	EventStageFinished EventType = "stage_finished"
	EventStageFailed   EventType = "stage_failed"
)

// Event describes a stage transition during a run.
type Event struct {
	Type     EventType
	Stage    string
	Err      error
	Duration time.Duration
}

// Notifier receives stage events as the runner progresses. Notifiers
// must not block; they are called synchronously between stages.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(e Event) { f(e) }

// Runner executes a stage graph sequentially.
type Runner struct {
	graph     *Graph
	log       *zap.Logger
	notifiers []Notifier
}

// NewRunner creates a runner for the graph. The logger may be nil.
func NewRunner(g *Graph, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{graph: g, log: log}
}

// Subscribe registers a notifier for stage events.
func (r *Runner) Subscribe(n Notifier) {
	r.notifiers = append(r.notifiers, n)
}

func (r *Runner) notify(e Event) {
	for _, n := range r.notifiers {
		n.Notify(e)
	}
}

// Run plans the graph and executes every stage in order. The first
// stage error stops the run immediately; stages after it never start.
func (r *Runner) Run(ctx context.Context, b *Build) error {
	plan, err := r.graph.Plan()
	if err != nil {
		return err
	}

	for _, stage := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.log.Info("stage started", zap.String("stage", stage.Name()), zap.String("build", b.ID))
		r.notify(Event{Type: EventStageStarted, Stage: stage.Name()})

		start := time.Now()
		if err := stage.Run(ctx, b); err != nil {
			elapsed := time.Since(start)
			r.log.Error("stage failed",
				zap.String("stage", stage.Name()),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
			r.notify(Event{Type: EventStageFailed, Stage: stage.Name(), Err: err, Duration: elapsed})
			return err
		}

		elapsed := time.Since(start)
		r.log.Info("stage finished",
			zap.String("stage", stage.Name()),
			zap.Duration("elapsed", elapsed))
		r.notify(Event{Type: EventStageFinished, Stage: stage.Name(), Duration: elapsed})
	}

	return nil
}
