package memory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type window struct {
	count   int
	expires time.Time
}

// Ledger implements ports.Ledger in memory.
// Safe for concurrent use. Contents are lost when the process exits.
type Ledger struct {
	mu     sync.Mutex
	seen   map[string]map[string]struct{}
	quotas map[string]*window
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces the time source used for quota windows.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates a new in-memory ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		seen:   make(map[string]map[string]struct{}),
		quotas: make(map[string]*window),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Seen reports whether id was marked in namespace.
func (l *Ledger) Seen(_ context.Context, namespace, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[namespace][id]
	return ok, nil
}

// Mark records id in namespace.
func (l *Ledger) Mark(_ context.Context, namespace, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids, ok := l.seen[namespace]
	if !ok {
		ids = make(map[string]struct{})
		l.seen[namespace] = ids
	}
	ids[id] = struct{}{}
	return nil
}

// Consume takes one unit of quota. The window starts at the first unit taken
// and resets once it has elapsed.
func (l *Ledger) Consume(_ context.Context, quota string, limit int, win time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	if win <= 0 {
		return false, fmt.Errorf("quota %q: window must be positive", quota)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := fmt.Sprintf("%s:%d", quota, win.Milliseconds())
	w, ok := l.quotas[key]
	if !ok || !now.Before(w.expires) {
		w = &window{expires: now.Add(win)}
		l.quotas[key] = w
	}
	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}
