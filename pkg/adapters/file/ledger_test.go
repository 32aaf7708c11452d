package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Contract(t *testing.T) {
	l, err := file.New(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	tests.RunLedgerContract(t, l)
}

func TestLedger_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.json")

	l, err := file.New(path)
	require.NoError(t, err)
	require.NoError(t, l.Mark(ctx, "outreach", "https://www.linkedin.com/in/ada/"))
	ok, err := l.Consume(ctx, "messages", 1, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	reopened, err := file.New(path)
	require.NoError(t, err)
	seen, err := reopened.Seen(ctx, "outreach", "https://www.linkedin.com/in/ada/")
	require.NoError(t, err)
	assert.True(t, seen)

	ok, err = reopened.Consume(ctx, "messages", 1, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "quota usage persists")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLedger_WindowResets(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l, err := file.New(filepath.Join(t.TempDir(), "ledger.json"), file.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	ok, _ := l.Consume(ctx, "q", 1, time.Minute)
	assert.True(t, ok)
	ok, _ = l.Consume(ctx, "q", 1, time.Minute)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = l.Consume(ctx, "q", 1, time.Minute)
	assert.True(t, ok)
}

func TestLedger_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := file.New(path)
	assert.ErrorContains(t, err, "failed to unmarshal ledger")
}

func TestLedger_InvalidInput(t *testing.T) {
	l, err := file.New(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)

	ok, err := l.Consume(context.Background(), "q", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.Consume(context.Background(), "q", 1, 0)
	assert.Error(t, err)
}
