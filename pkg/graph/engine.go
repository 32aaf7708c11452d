package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/google/uuid"
)

// ErrNotSuspended is returned by Resume for runs that are not parked.
var ErrNotSuspended = errors.New("run is not suspended")

// Status is the phase of a run after Execute or Resume returns.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSuspended Status = "suspended"
)

// StepRecord is one entry of a run's history.
type StepRecord struct {
	Step     string
	Outcome  domain.Outcome
	Err      error
	Duration time.Duration
}

// Run is the result of executing a compiled graph.
type Run[S any] struct {
	ID      string
	Graph   string
	State   S
	Status  Status
	Cursor  string // step to re-run on Resume; End once completed
	Prompt  string // reason given by the suspending step
	History []StepRecord
}

// Suspended reports whether the run is parked awaiting Resume.
func (r *Run[S]) Suspended() bool { return r.Status == StatusSuspended }

// Visits counts how many times step ran.
func (r *Run[S]) Visits(step string) int {
	n := 0
	for _, rec := range r.History {
		if rec.Step == step {
			n++
		}
	}
	return n
}

// Failures returns the failed history entries in order.
func (r *Run[S]) Failures() []StepRecord {
	var out []StepRecord
	for _, rec := range r.History {
		if rec.Outcome == domain.OutcomeFailed {
			out = append(out, rec)
		}
	}
	return out
}

// LastStep returns the name of the most recently executed step.
func (r *Run[S]) LastStep() string {
	if len(r.History) == 0 {
		return ""
	}
	return r.History[len(r.History)-1].Step
}

type suspension struct {
	prompt string
}

func (s *suspension) Error() string { return "suspended: " + s.prompt }

func (s *suspension) Is(target error) bool { return target == domain.ErrSuspended }

// Suspend returns the error a step uses to park the run. The delta returned
// alongside it is merged before the run parks.
func Suspend(prompt string) error {
	return &suspension{prompt: prompt}
}

// Option configures a compiled graph.
type Option func(*settings)

type settings struct {
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	maxSteps int
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMaxSteps caps the number of steps a single Execute or Resume call runs.
// Zero (the default) means no cap.
func WithMaxSteps(n int) Option {
	return func(s *settings) {
		s.maxSteps = n
	}
}

// Compiled is an immutable, validated graph. It is safe for concurrent use;
// each Execute call owns its own Run.
type Compiled[S any] struct {
	name    string
	entry   string
	order   []string
	nodes   map[string]NodeFunc[S]
	edges   map[string]string
	routes  map[string]route[S]
	reducer Reducer[S]
	failure FailureFunc[S]
	settings
}

func (g *Compiled[S]) apply(opts []Option) {
	g.logger = logging.NewNop()
	for _, opt := range opts {
		opt(&g.settings)
	}
}

// Name returns the graph name.
func (g *Compiled[S]) Name() string { return g.name }

// Execute runs the graph from its entry step until End or a suspension.
func (g *Compiled[S]) Execute(ctx context.Context, initial S) *Run[S] {
	run := &Run[S]{
		ID:    uuid.NewString(),
		Graph: g.name,
		State: initial,
	}
	g.loop(ctx, run, g.entry)
	return run
}

// Resume merges patch into a suspended run and re-runs the step that suspended it.
func (g *Compiled[S]) Resume(ctx context.Context, run *Run[S], patch S) error {
	if run == nil || !run.Suspended() {
		return ErrNotSuspended
	}
	if run.Graph != g.name {
		return fmt.Errorf("run belongs to graph %q, not %q", run.Graph, g.name)
	}
	run.State = g.reducer(run.State, patch)
	run.Prompt = ""
	g.loop(ctx, run, run.Cursor)
	return nil
}

func (g *Compiled[S]) loop(ctx context.Context, run *Run[S], cursor string) {
	steps := 0
	for cursor != End {
		if err := ctx.Err(); err != nil {
			g.recordFailure(run, cursor, fmt.Errorf("cancelled before step: %w", err))
			break
		}
		if g.maxSteps > 0 && steps >= g.maxSteps {
			g.recordFailure(run, cursor, fmt.Errorf("step limit of %d reached", g.maxSteps))
			break
		}
		steps++

		if g.step(ctx, run, cursor) {
			run.Status = StatusSuspended
			run.Cursor = cursor
			g.logger.Info("Run suspended", "graph", g.name, "run_id", run.ID, "step", cursor, "prompt", run.Prompt)
			return
		}

		next, err := g.next(ctx, run.State, cursor)
		if err != nil {
			g.recordFailure(run, cursor, err)
			break
		}
		cursor = next
	}
	run.Status = StatusCompleted
	run.Cursor = End
}

// step runs one node and reports whether it suspended.
func (g *Compiled[S]) step(ctx context.Context, run *Run[S], name string) bool {
	started := time.Now()
	g.emit(ctx, g.hooks.OnStepEnter, &domain.StepEvent{
		Timestamp: started,
		RunID:     run.ID,
		Graph:     g.name,
		Step:      name,
	})

	delta, err := invoke(ctx, g.nodes[name], run.State)
	run.State = g.reducer(run.State, delta)

	outcome := domain.OutcomeOK
	var susp *suspension
	switch {
	case err == nil:
	case errors.As(err, &susp):
		outcome = domain.OutcomeSuspended
		run.Prompt = susp.prompt
		err = nil
	default:
		outcome = domain.OutcomeFailed
		if g.failure != nil {
			run.State = g.reducer(run.State, g.failure(name, err))
		}
		g.logger.Warn("Step failed", "graph", g.name, "run_id", run.ID, "step", name, "err", err)
	}

	elapsed := time.Since(started)
	run.History = append(run.History, StepRecord{Step: name, Outcome: outcome, Err: err, Duration: elapsed})
	g.emit(ctx, g.hooks.OnStepLeave, &domain.StepEvent{
		Timestamp: time.Now(),
		RunID:     run.ID,
		Graph:     g.name,
		Step:      name,
		Outcome:   outcome,
		Duration:  elapsed,
		Err:       err,
	})
	return outcome == domain.OutcomeSuspended
}

func (g *Compiled[S]) next(ctx context.Context, state S, from string) (to string, err error) {
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	rt := g.routes[from]

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("router %q panicked: %v", rt.router.Name, r)
		}
	}()
	label := rt.router.Pick(ctx, state)
	to, ok := rt.targets[label]
	if !ok {
		return "", fmt.Errorf("router %q returned undeclared label %q", rt.router.Name, label)
	}
	return to, nil
}

// recordFailure logs a failure that happened outside a node body.
func (g *Compiled[S]) recordFailure(run *Run[S], step string, err error) {
	if g.failure != nil {
		run.State = g.reducer(run.State, g.failure(step, err))
	}
	run.History = append(run.History, StepRecord{Step: step, Outcome: domain.OutcomeFailed, Err: err})
	g.logger.Warn("Run stopped", "graph", g.name, "run_id", run.ID, "step", step, "err", err)
}

func (g *Compiled[S]) emit(ctx context.Context, hook func(context.Context, *domain.StepEvent), e *domain.StepEvent) {
	if hook != nil {
		hook(ctx, e)
	}
}

func invoke[S any](ctx context.Context, fn NodeFunc[S], state S) (delta S, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero S
			delta, err = zero, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, state)
}
