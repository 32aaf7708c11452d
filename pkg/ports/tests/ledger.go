package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLedgerContract is a reusable test suite that verifies if an adapter complies with ports.Ledger.
func RunLedgerContract(t *testing.T, ledger ports.Ledger) {
	t.Helper()
	ctx := context.Background()
	ns := "contract-" + time.Now().Format("20060102150405.000000")

	t.Run("Seen_Unknown", func(t *testing.T) {
		seen, err := ledger.Seen(ctx, ns, "nobody")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("Mark_Then_Seen", func(t *testing.T) {
		require.NoError(t, ledger.Mark(ctx, ns, "alice"))
		require.NoError(t, ledger.Mark(ctx, ns, "alice"), "marking twice is not an error")

		seen, err := ledger.Seen(ctx, ns, "alice")
		require.NoError(t, err)
		assert.True(t, seen)

		other, err := ledger.Seen(ctx, ns+"-other", "alice")
		require.NoError(t, err)
		assert.False(t, other, "namespaces are isolated")
	})

	t.Run("Consume_Respects_Limit", func(t *testing.T) {
		quota := ns + "-quota"
		for i := 0; i < 3; i++ {
			ok, err := ledger.Consume(ctx, quota, 3, time.Hour)
			require.NoError(t, err)
			assert.True(t, ok, "unit %d should fit", i+1)
		}
		ok, err := ledger.Consume(ctx, quota, 3, time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Consume_Concurrent", func(t *testing.T) {
		quota := ns + "-concurrent"
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			taken int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := ledger.Consume(ctx, quota, 5, time.Hour)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					taken++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 5, taken, fmt.Sprintf("exactly the limit should be granted, got %d", taken))
	})
}
