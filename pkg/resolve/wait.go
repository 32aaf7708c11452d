package resolve

import (
	"context"
	"time"

	"github.com/aretw0/tendril/pkg/ports"
)

// DefaultInterval is the polling period used when a Wait has none.
const DefaultInterval = 250 * time.Millisecond

// Wait is a bounded polling policy for UI readiness.
type Wait struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Within returns a Wait bounded by timeout.
func Within(timeout time.Duration) Wait {
	return Wait{Timeout: timeout, Interval: DefaultInterval}
}

// One polls sel until it matches or the timeout passes. On timeout it
// behaves like FindOne: required selectors fail, optional ones return nil.
func (w Wait) One(ctx context.Context, scope ports.Scope, sel Selector) (ports.Element, error) {
	var el ports.Element
	err := w.poll(ctx, func() bool {
		el, _ = sel.AsOptional().FindOne(ctx, scope)
		return el != nil
	})
	if err != nil || el != nil {
		return el, err
	}
	return sel.FindOne(ctx, scope)
}

// Many polls sel until it yields a non-empty list or the timeout passes.
func (w Wait) Many(ctx context.Context, scope ports.Scope, sel Selector) ([]ports.Element, error) {
	var els []ports.Element
	err := w.poll(ctx, func() bool {
		els, _ = sel.AsOptional().FindMany(ctx, scope)
		return len(els) > 0
	})
	if err != nil || len(els) > 0 {
		return els, err
	}
	return sel.FindMany(ctx, scope)
}

// Count polls until sel matches more than above elements and returns the
// last observed count. Not growing before the timeout is not an error.
func (w Wait) Count(ctx context.Context, scope ports.Scope, sel Selector, above int) (int, error) {
	n := 0
	err := w.poll(ctx, func() bool {
		els, _ := sel.AsOptional().FindMany(ctx, scope)
		n = len(els)
		return n > above
	})
	return n, err
}

// URL polls the session location until match accepts it. It returns the
// last observed location and whether it matched.
func (w Wait) URL(ctx context.Context, s ports.Session, match func(string) bool) (string, bool, error) {
	var (
		current string
		ok      bool
	)
	err := w.poll(ctx, func() bool {
		u, err := s.CurrentURL(ctx)
		if err != nil {
			return false
		}
		current = u
		ok = match(u)
		return ok
	})
	return current, ok, err
}

// poll calls done until it returns true or the timeout passes. Only context
// errors are returned.
func (w Wait) poll(ctx context.Context, done func() bool) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	deadline := time.Now().Add(w.Timeout)
	for {
		if done() {
			return nil
		}
		if !time.Now().Before(deadline) {
			return nil
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
