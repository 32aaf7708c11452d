package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/aretw0/tendril/pkg/ports"
)

type hashingLedger struct {
	next ports.Ledger
	key  []byte
}

// NewHashingMiddleware replaces every identifier with its keyed HMAC-SHA256
// before it reaches the backend, so the ledger never stores profile or job
// URLs in clear. The same key must be used for the lifetime of the data.
func NewHashingMiddleware(key []byte) Middleware {
	k := append([]byte(nil), key...)
	return func(next ports.Ledger) ports.Ledger {
		return &hashingLedger{next: next, key: k}
	}
}

func (m *hashingLedger) digest(id string) string {
	mac := hmac.New(sha256.New, m.key)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *hashingLedger) Seen(ctx context.Context, namespace, id string) (bool, error) {
	return m.next.Seen(ctx, namespace, m.digest(id))
}

func (m *hashingLedger) Mark(ctx context.Context, namespace, id string) error {
	return m.next.Mark(ctx, namespace, m.digest(id))
}

// Quota names are not personal data and pass through.
func (m *hashingLedger) Consume(ctx context.Context, quota string, limit int, window time.Duration) (bool, error) {
	return m.next.Consume(ctx, quota, limit, window)
}
