package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
)

// MockStore structure
type MockStore struct{}

func (m *MockStore) Save(ctx context.Context, sessionID string, state *domain.State) error {
	return nil
}
func (m *MockStore) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	return domain.NewState(), nil
}
func (m *MockStore) Delete(ctx context.Context, sessionID string) error { return nil }
func (m *MockStore) List(ctx context.Context) ([]string, error)         { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(&MockStore{})
	ctx := context.Background()
	count := 10000

	// Touch and delete many sessions; the ref-counted entries must not leak.
	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_, _ = mgr.Load(ctx, sid)
		_ = mgr.Delete(ctx, sid)
	}

	lockCount := len(mgr.locks)
	t.Logf("Sessions Touched: %d, Locks Remaining: %d", count, lockCount)

	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}

// countingLocker records distributed lock acquisitions and releases.
type countingLocker struct {
	locked   int
	released int
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.locked++
	return func(ctx context.Context) error {
		l.released++
		return nil
	}, nil
}

func TestManager_DistributedLockerIsPaired(t *testing.T) {
	locker := &countingLocker{}
	mgr := NewManager(&MockStore{}, WithLocker(locker), WithLockTTL(time.Second))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := mgr.WithLock(ctx, "s1", func(ctx context.Context) error { return nil }); err != nil {
			t.Fatalf("WithLock failed: %v", err)
		}
	}

	if locker.locked != 3 || locker.released != 3 {
		t.Errorf("expected 3 paired lock/unlock, got %d/%d", locker.locked, locker.released)
	}
}
