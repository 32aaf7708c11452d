// Package workflows holds what the domain workflows share: the selector
// catalog, the action executor, pacing, and readiness waits.
//
// Every workflow follows the same merge discipline. Steps return a delta
// with only what they changed or produced; the workflow reducer replaces
// scalars set in the delta, latches flags, appends accumulators and errors,
// and only ever adds to dedup sets.
package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/act"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/resolve"
	"github.com/aretw0/tendril/pkg/selectors"
)

// Pacing is the range of randomized delays inserted between actions.
type Pacing struct {
	Min time.Duration
	Max time.Duration
}

// Kit bundles the collaborators every workflow needs.
type Kit struct {
	Selectors *selectors.Catalog
	Actions   *act.Executor
	Pacing    Pacing
	// Ready bounds waits for elements that appear after navigation or a click.
	Ready  time.Duration
	Logger *slog.Logger
	Graph  []graph.Option
}

// Defaults fills unset fields.
func (k Kit) Defaults() Kit {
	if k.Selectors == nil {
		k.Selectors = selectors.Default()
	}
	if k.Logger == nil {
		k.Logger = logging.NewNop()
	}
	if k.Actions == nil {
		k.Actions = act.New(act.WithLogger(k.Logger))
	}
	if k.Pacing == (Pacing{}) {
		k.Pacing = Pacing{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond}
	}
	if k.Ready <= 0 {
		k.Ready = 10 * time.Second
	}
	return k
}

// Pace asks the session for a randomized delay.
func (k Kit) Pace(ctx context.Context, s ports.Session) error {
	return s.Pace(ctx, k.Pacing.Min, k.Pacing.Max)
}

// Wait returns the readiness wait policy.
func (k Kit) Wait() resolve.Wait {
	return resolve.Within(k.Ready)
}

// Click resolves sel in scope and activates it.
func (k Kit) Click(ctx context.Context, scope ports.Scope, sel resolve.Selector) error {
	el, err := sel.AsRequired().FindOne(ctx, scope)
	if err != nil {
		return err
	}
	_, err = k.Actions.Activate(ctx, sel.Name, el)
	return err
}

// StepError formats a failure for a state's error list.
func StepError(step string, err error) string {
	return fmt.Sprintf("%s: %v", step, err)
}

// LastError returns the most recent entry of errs, or "".
func LastError(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[len(errs)-1]
}

// Navigate loads url and wraps failures as *domain.NavigationFailure.
func Navigate(ctx context.Context, s ports.Session, url string) error {
	if err := s.Navigate(ctx, url); err != nil {
		return &domain.NavigationFailure{URL: url, Err: err}
	}
	return nil
}
