package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T, opts ...redis.Option) (*redis.Ledger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewFromClient(client, opts...), mr
}

func TestLedger_Contract(t *testing.T) {
	ledger, _ := newLedger(t)
	tests.RunLedgerContract(t, ledger)
}

func TestLedger_Prefix(t *testing.T) {
	ledger, mr := newLedger(t, redis.WithPrefix("acme:"))
	ctx := context.Background()

	require.NoError(t, ledger.Mark(ctx, "outreach", "https://www.linkedin.com/in/jane"))

	ok, err := mr.SIsMember("acme:seen:outreach", "https://www.linkedin.com/in/jane")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("tendril:seen:outreach"))
}

func TestLedger_WindowExpires(t *testing.T) {
	ledger, mr := newLedger(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := ledger.Consume(ctx, "daily", 2, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := ledger.Consume(ctx, "daily", 2, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Hour + time.Second)

	ok, err = ledger.Consume(ctx, "daily", 2, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts after expiry")
}

func TestLedger_RejectedUnitsDoNotCount(t *testing.T) {
	ledger, mr := newLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := ledger.Consume(ctx, "q", 1, time.Minute)
		require.NoError(t, err)
	}
	v, err := mr.Get("tendril:quota:q:60000")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestLedger_ZeroLimit(t *testing.T) {
	ledger, _ := newLedger(t)
	ok, err := ledger.Consume(context.Background(), "q", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_InvalidWindow(t *testing.T) {
	ledger, _ := newLedger(t)
	_, err := ledger.Consume(context.Background(), "q", 3, 0)
	assert.Error(t, err)
}

func TestLedger_ServerDown(t *testing.T) {
	ledger, mr := newLedger(t)
	mr.Close()

	_, err := ledger.Seen(context.Background(), "ns", "id")
	assert.ErrorContains(t, err, "failed to read ledger")
}
