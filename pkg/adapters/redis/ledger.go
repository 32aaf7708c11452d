package redis

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the adapter writes.
const DefaultPrefix = "tendril:"

// consumeScript increments a window counter, sets its expiry on the first
// unit and rolls the increment back when the limit is already reached.
var consumeScript = backend.NewScript(`
local n = redis.call("incr", KEYS[1])
if n == 1 then
	redis.call("pexpire", KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
	redis.call("decr", KEYS[1])
	return 0
end
return 1
`)

// Ledger implements ports.Ledger using Redis sets and expiring counters.
type Ledger struct {
	client backend.UniversalClient
	prefix string
}

// Option defines a functional option for configuring the Ledger.
type Option func(*Ledger)

// WithPrefix sets a custom key prefix.
func WithPrefix(prefix string) Option {
	return func(l *Ledger) {
		l.prefix = prefix
	}
}

// New creates a new Redis-backed ledger.
func New(address, password string, db int, opts ...Option) *Ledger {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a ledger on an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Ledger {
	l := &Ledger{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Client exposes the underlying client so a Locker can share it.
func (l *Ledger) Client() backend.UniversalClient {
	return l.client
}

// Prefix returns the configured key prefix.
func (l *Ledger) Prefix() string {
	return l.prefix
}

func (l *Ledger) seenKey(namespace string) string {
	return l.prefix + "seen:" + namespace
}

func (l *Ledger) quotaKey(quota string, window time.Duration) string {
	return fmt.Sprintf("%squota:%s:%d", l.prefix, quota, window.Milliseconds())
}

// Seen reports whether id was marked in namespace.
func (l *Ledger) Seen(ctx context.Context, namespace, id string) (bool, error) {
	ok, err := l.client.SIsMember(ctx, l.seenKey(namespace), id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read ledger: %w", err)
	}
	return ok, nil
}

// Mark records id in namespace.
func (l *Ledger) Mark(ctx context.Context, namespace, id string) error {
	if err := l.client.SAdd(ctx, l.seenKey(namespace), id).Err(); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}

// Consume takes one unit of quota within a fixed window that starts at the
// first unit taken.
func (l *Ledger) Consume(ctx context.Context, quota string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	if window <= 0 {
		return false, fmt.Errorf("quota %q: window must be positive", quota)
	}
	n, err := consumeScript.Run(ctx, l.client, []string{l.quotaKey(quota, window)}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume quota %q: %w", quota, err)
	}
	return n == 1, nil
}

// Close releases the underlying client.
func (l *Ledger) Close() error {
	return l.client.Close()
}
