package ports

import (
	"context"
	"time"
)

// Ledger persists dedup and quota decisions for the hosting service.
// The workflow core never calls it.
type Ledger interface {
	// Seen reports whether id was marked in namespace.
	Seen(ctx context.Context, namespace, id string) (bool, error)

	// Mark records id in namespace. Marking twice is not an error.
	Mark(ctx context.Context, namespace, id string) error

	// Consume takes one unit of the named quota if fewer than limit units were
	// taken in the current window. It reports whether a unit was taken.
	Consume(ctx context.Context, quota string, limit int, window time.Duration) (bool, error)
}
