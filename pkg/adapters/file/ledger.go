// Package file persists the ledger as a JSON document on the local filesystem.
// It suits single-process CLI use, where dedup must survive between runs
// but a Redis server would be overkill.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPath is used when New receives an empty path.
var DefaultPath = filepath.Join(".tendril", "ledger.json")

type window struct {
	Count   int       `json:"count"`
	Expires time.Time `json:"expires"`
}

type snapshot struct {
	Seen   map[string]map[string]bool `json:"seen"`
	Quotas map[string]*window         `json:"quotas"`
}

// Ledger implements ports.Ledger on a JSON file. Every change is written
// through before the call returns. Safe for concurrent use within one process.
type Ledger struct {
	mu   sync.Mutex
	path string
	data snapshot
	now  func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces the time source used for quota windows.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New opens the ledger at path, starting empty if the file does not exist.
func New(path string, opts ...Option) (*Ledger, error) {
	if path == "" {
		path = DefaultPath
	}
	l := &Ledger{
		path: path,
		data: snapshot{Seen: map[string]map[string]bool{}, Quotas: map[string]*window{}},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}
	if err := json.Unmarshal(raw, &l.data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger %s: %w", path, err)
	}
	if l.data.Seen == nil {
		l.data.Seen = map[string]map[string]bool{}
	}
	if l.data.Quotas == nil {
		l.data.Quotas = map[string]*window{}
	}
	return l, nil
}

// Path returns the backing file.
func (l *Ledger) Path() string { return l.path }

// Seen reports whether id was marked in namespace.
func (l *Ledger) Seen(_ context.Context, namespace, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.data.Seen[namespace][id], nil
}

// Mark records id in namespace.
func (l *Ledger) Mark(_ context.Context, namespace, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids, ok := l.data.Seen[namespace]
	if !ok {
		ids = make(map[string]bool)
		l.data.Seen[namespace] = ids
	}
	if ids[id] {
		return nil
	}
	ids[id] = true
	if err := l.save(); err != nil {
		delete(ids, id)
		return err
	}
	return nil
}

// Consume takes one unit of quota in a fixed window starting at the first unit.
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
	w, ok := l.data.Quotas[key]
	if !ok || !now.Before(w.Expires) {
		w = &window{Expires: now.Add(win)}
	}
	if w.Count >= limit {
		return false, nil
	}
	prev := l.data.Quotas[key]
	l.data.Quotas[key] = &window{Count: w.Count + 1, Expires: w.Expires}
	if err := l.save(); err != nil {
		if prev == nil {
			delete(l.data.Quotas, key)
		} else {
			l.data.Quotas[key] = prev
		}
		return false, err
	}
	return true, nil
}

// save writes the snapshot atomically: temp file in the same directory,
// fsync, then rename over the destination.
func (l *Ledger) save() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure ledger directory: %w", err)
	}

	data, err := json.MarshalIndent(l.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "tmp-ledger-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}
