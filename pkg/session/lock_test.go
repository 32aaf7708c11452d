package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/tendril/internal/testutils/fakeweb"
	"github.com/aretw0/tendril/pkg/ports"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(ProviderFunc(func(context.Context) (ports.Session, error) {
		return fakeweb.NewPage("about:blank"), nil
	}))
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("profile-%d", i)
		_ = mgr.Do(ctx, key, func(context.Context, ports.Session) error { return nil })
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining after %d leases", lockCount, count)
	}
}
