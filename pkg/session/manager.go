package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Provider opens browser sessions. Sessions that also implement io.Closer
// are closed when their lease is released.
type Provider interface {
	Open(ctx context.Context) (ports.Session, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (ports.Session, error)

func (f ProviderFunc) Open(ctx context.Context) (ports.Session, error) { return f(ctx) }

// DefaultMaxSessions bounds concurrently open sessions.
const DefaultMaxSessions = 2

// lockEntry is a context-aware mutex with a reference count.
type lockEntry struct {
	ch   chan struct{}
	refs int
}

// Manager leases sessions, ensuring one holder per key at a time.
// Reference counting garbage-collects unused key locks.
type Manager struct {
	provider Provider
	sessions *semaphore.Weighted

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets how long a distributed lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithMaxSessions bounds how many sessions may be open at once.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.sessions = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager that opens sessions from provider.
func NewManager(provider Provider, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		sessions: semaphore.NewWeighted(DefaultMaxSessions),
		locks:    make(map[string]*lockEntry),
		lockTTL:  5 * time.Minute,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lease is exclusive use of a session for a key. Release must be called.
type Lease struct {
	Key     string
	Session ports.Session

	once    sync.Once
	release func()
}

// Release closes the session and frees the key. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(l.release)
}

// Lease blocks until key is free and a session slot is available, then opens
// a session. An empty key skips key locking.
func (m *Manager) Lease(ctx context.Context, key string) (*Lease, error) {
	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	if key != "" {
		entry := m.acquire(key)
		select {
		case entry.ch <- struct{}{}:
		case <-ctx.Done():
			m.release(key)
			return nil, ctx.Err()
		}
		undo = append(undo, func() {
			<-entry.ch
			m.release(key)
		})

		if m.locker != nil {
			unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
			if err != nil {
				rollback()
				return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockAcquire, key, err)
			}
			undo = append(undo, func() {
				// The holder's context may be done by now; unlock regardless.
				if err := unlock(context.Background()); err != nil {
					m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
						"key", key,
						"err", err,
					)
				}
			})
		}
	}

	if err := m.sessions.Acquire(ctx, 1); err != nil {
		rollback()
		return nil, err
	}
	undo = append(undo, func() { m.sessions.Release(1) })

	sess, err := m.provider.Open(ctx)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("open session: %w", err)
	}
	undo = append(undo, func() {
		if c, ok := sess.(io.Closer); ok {
			if err := c.Close(); err != nil {
				m.logger.Warn("Failed to close session", "key", key, "err", err)
			}
		}
	})

	m.logger.Debug("Session leased", "key", key)
	return &Lease{Key: key, Session: sess, release: rollback}, nil
}

// Do runs fn with a leased session and always releases it.
func (m *Manager) Do(ctx context.Context, key string, fn func(context.Context, ports.Session) error) error {
	lease, err := m.Lease(ctx, key)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(ctx, lease.Session)
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must take entry.ch, and call release(key) once done with it.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}
