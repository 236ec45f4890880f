package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/espalier"
	"github.com/aretw0/espalier/pkg/adapters/memory"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.State
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, state *domain.State) error {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.State)
	}
	s.data[sessionID] = state
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.data[sessionID]; ok {
		return state, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func counterController(t *testing.T) *espalier.Controller {
	t.Helper()
	ctrl, err := espalier.New("CounterLive",
		espalier.MountAction("index", func(ctx context.Context, s *domain.State, p domain.Params) (domain.Outcome, error) {
			return s.Assign("count", 0), nil
		}),
		espalier.Event("incr", func(ctx context.Context, s *domain.State, p domain.Params) (domain.Outcome, error) {
			n, _ := s.Value("count")
			count, _ := n.(int)
			return s.Assign("count", count+1), nil
		}),
	)
	require.NoError(t, err)
	return ctrl
}

func TestManager_SerializesDispatchPerSession(t *testing.T) {
	store := &SlowStore{}
	mgr := session.NewManager(store)
	ctrl := counterController(t)
	ctx := context.Background()
	id := "race-test"

	_, err := mgr.Mount(ctx, id, ctrl, "index", domain.Params{}, domain.Session{})
	require.NoError(t, err)

	// Concurrent events against one session must not lose increments:
	// each dispatch is load-modify-save, so without the per-session lock
	// the SlowStore latency would interleave them.
	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := mgr.Dispatch(ctx, id, ctrl, "incr", domain.Params{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := mgr.Load(ctx, id)
	require.NoError(t, err)
	count, _ := state.Value("count")
	assert.Equal(t, n, count)
}

func TestManager_DispatchObservedSnapshotsUnderLock(t *testing.T) {
	store := &SlowStore{}
	mgr := session.NewManager(store)
	ctrl := counterController(t)
	ctx := context.Background()
	id := "observed"

	_, err := mgr.Mount(ctx, id, ctrl, "index", domain.Params{}, domain.Session{})
	require.NoError(t, err)

	// The prior snapshot and the run happen under one lock acquisition, so
	// every concurrent dispatch must observe exactly its own increment. A
	// load outside the lock would see another dispatch's intermediate state.
	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	deltas := make([]int, 0, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			prior, env, err := mgr.DispatchObserved(ctx, id, ctrl, "incr", domain.Params{})
			assert.NoError(t, err)

			b, _ := prior.Value("count")
			a, _ := env.State.Value("count")
			mu.Lock()
			deltas = append(deltas, a.(int)-b.(int))
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, d := range deltas {
		assert.Equal(t, 1, d)
	}
}

func TestManager_MountPersistsState(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctrl := counterController(t)
	ctx := context.Background()

	env, err := mgr.Mount(ctx, "s1", ctrl, "index", domain.Params{}, domain.Session{})
	require.NoError(t, err)
	assert.Equal(t, domain.DispositionContinue, env.Disposition)
	assert.Equal(t, "s1", env.State.SessionID)

	state, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	count, _ := state.Value("count")
	assert.Equal(t, 0, count)
}

func TestManager_DispatchUnknownSession(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctrl := counterController(t)

	_, err := mgr.Dispatch(context.Background(), "ghost", ctrl, "incr", domain.Params{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_UnknownEventLeavesSessionIntact(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctrl := counterController(t)
	ctx := context.Background()

	_, err := mgr.Mount(ctx, "s1", ctrl, "index", domain.Params{}, domain.Session{})
	require.NoError(t, err)

	_, err = mgr.Dispatch(ctx, "s1", ctrl, "bogus", domain.Params{})
	require.ErrorIs(t, err, domain.ErrUnknownEvent)

	// The rejection must not have clobbered the stored state.
	state, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	count, _ := state.Value("count")
	assert.Equal(t, 0, count)

	// And the session keeps accepting valid events.
	env, err := mgr.Dispatch(ctx, "s1", ctrl, "incr", domain.Params{})
	require.NoError(t, err)
	count, _ = env.State.Value("count")
	assert.Equal(t, 1, count)
}

func TestManager_DeleteEndsSession(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctrl := counterController(t)
	ctx := context.Background()

	_, err := mgr.Mount(ctx, "s1", ctrl, "index", domain.Params{}, domain.Session{})
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(ctx, "s1"))

	ok, err := mgr.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}
