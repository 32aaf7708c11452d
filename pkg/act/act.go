// Package act implements resilient interaction with located elements.
package act

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Technique is one way of activating an element.
type Technique string

const (
	ScrollDispatch Technique = "scroll_dispatch"
	NativeClick    Technique = "native_click"
	PointerClick   Technique = "pointer_click"
	AncestorClick  Technique = "ancestor_click"
	EnterKey       Technique = "enter_key"
)

// Techniques is the fixed order in which activation is attempted.
var Techniques = []Technique{ScrollDispatch, NativeClick, PointerClick, AncestorClick, EnterKey}

// Executor activates elements, falling back through Techniques until one works.
type Executor struct {
	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// Option configures the Executor.
type Option func(*Executor)

// WithLifecycleHooks registers a callback for every technique attempt.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(x *Executor) {
		x.hooks = x.hooks.Merge(hooks)
	}
}

// WithLogger configures a logger for the Executor.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Executor) {
		x.logger = logger
	}
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	x := &Executor{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Activate tries each technique in order and stops at the first success.
// When all fail it returns a *domain.ActionFailure with one attempt per technique.
func (x *Executor) Activate(ctx context.Context, target string, el ports.Element) (Technique, error) {
	attempts := make([]domain.Attempt, 0, len(Techniques))
	for _, tech := range Techniques {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := x.try(ctx, tech, el)
		x.emit(ctx, target, tech, err)
		if err == nil {
			x.logger.Debug("Element activated", "target", target, "technique", tech)
			return tech, nil
		}
		attempts = append(attempts, domain.Attempt{Strategy: string(tech), Reason: err.Error()})
	}
	x.logger.Warn("Activation exhausted", "target", target, "attempts", len(attempts))
	return "", &domain.ActionFailure{Target: target, Attempts: attempts}
}

// Activated is Activate reduced to whether any technique worked.
func (x *Executor) Activated(ctx context.Context, target string, el ports.Element) bool {
	_, err := x.Activate(ctx, target, el)
	return err == nil
}

// Fill writes text into a field. If the field rejects input it is activated
// once to take focus and written again.
func (x *Executor) Fill(ctx context.Context, target string, el ports.Element, text string) error {
	if err := el.Input(ctx, text); err == nil {
		return nil
	}
	if _, err := x.Activate(ctx, target, el); err != nil {
		return err
	}
	return el.Input(ctx, text)
}

func (x *Executor) try(ctx context.Context, tech Technique, el ports.Element) error {
	switch tech {
	case ScrollDispatch:
		if err := el.ScrollIntoView(ctx); err != nil {
			x.logger.Debug("Scroll into view failed", "err", err)
		}
		return el.Dispatch(ctx)
	case NativeClick:
		return el.Click(ctx)
	case PointerClick:
		return el.HoverClick(ctx)
	case AncestorClick:
		anc, err := el.ActionableAncestor(ctx)
		if err != nil {
			return err
		}
		return anc.Click(ctx)
	case EnterKey:
		return el.PressEnter(ctx)
	}
	return nil
}

func (x *Executor) emit(ctx context.Context, target string, tech Technique, err error) {
	if x.hooks.OnAction == nil {
		return
	}
	x.hooks.OnAction(ctx, &domain.ActionEvent{
		Timestamp: time.Now(),
		Target:    target,
		Technique: string(tech),
		Succeeded: err == nil,
		Err:       err,
	})
}
