package middleware_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const profile = "https://www.linkedin.com/in/ada/"

func TestHashing_Contract(t *testing.T) {
	l := middleware.Chain(memory.NewLedger(), middleware.NewHashingMiddleware([]byte("k")))
	tests.RunLedgerContract(t, l)
}

func TestHashing_NeverForwardsClearIDs(t *testing.T) {
	ctx := context.Background()
	backend := new(MockLedger)
	var stored string
	backend.On("Mark", ctx, "outreach", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { stored = args.String(2) }).
		Return(nil)
	backend.On("Seen", ctx, "outreach", mock.AnythingOfType("string")).Return(true, nil)
	backend.On("Consume", ctx, "messages", 5, time.Hour).Return(true, nil)

	l := middleware.NewHashingMiddleware([]byte("secret"))(backend)

	require.NoError(t, l.Mark(ctx, "outreach", profile))
	assert.NotContains(t, stored, "linkedin")
	assert.Len(t, stored, 64)

	_, err := l.Seen(ctx, "outreach", profile)
	require.NoError(t, err)
	backend.AssertCalled(t, "Seen", ctx, "outreach", stored)

	ok, err := l.Consume(ctx, "messages", 5, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	backend.AssertExpectations(t)
}

func TestHashing_KeyMatters(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewLedger()

	a := middleware.NewHashingMiddleware([]byte("a"))(backend)
	b := middleware.NewHashingMiddleware([]byte("b"))(backend)

	require.NoError(t, a.Mark(ctx, "outreach", profile))
	seen, err := b.Seen(ctx, "outreach", profile)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestChain_Order(t *testing.T) {
	ctx := context.Background()
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.Ledger) ports.Ledger {
			return recorder{Ledger: next, name: name, order: &order}
		}
	}

	l := middleware.Chain(memory.NewLedger(), tag("outer"), tag("inner"))
	require.NoError(t, l.Mark(ctx, "ns", "id"))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type recorder struct {
	ports.Ledger
	name  string
	order *[]string
}

func (r recorder) Mark(ctx context.Context, namespace, id string) error {
	*r.order = append(*r.order, r.name)
	return r.Ledger.Mark(ctx, namespace, id)
}
