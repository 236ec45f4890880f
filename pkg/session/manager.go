package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager makes each session a single logical sequential actor: its mount
// and each of its events run one at a time, in arrival order, never
// concurrently against the same session state. Locks are reference-counted
// so idle sessions cost nothing.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking for multi-replica hosts.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL (default 30s).
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager backed by the given state store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after
// unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Mount runs the controller's mount pipeline for a new session and persists
// the resulting state. The whole run happens under the session lock, so a
// racing event for the same session waits for the mount to finish.
func (m *Manager) Mount(ctx context.Context, sessionID string, ctrl ports.LiveDispatcher, rawAction string, params domain.Params, sess domain.Session) (domain.Envelope, error) {
	var env domain.Envelope
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		e, err := ctrl.Mount(ctx, rawAction, params, sess)
		if err != nil {
			return err
		}
		if e.State != nil {
			e.State = e.State.WithSessionID(sessionID)
			if err := m.store.Save(ctx, sessionID, e.State); err != nil {
				return fmt.Errorf("failed to persist mounted session: %w", err)
			}
		}
		env = e
		return nil
	})
	return env, err
}

// Dispatch re-enters the persisted state through the controller's event
// pipeline and persists the outcome. The session payload is never
// re-fetched; only the stored state participates.
func (m *Manager) Dispatch(ctx context.Context, sessionID string, ctrl ports.LiveDispatcher, rawEvent string, params domain.Params) (domain.Envelope, error) {
	_, env, err := m.DispatchObserved(ctx, sessionID, ctrl, rawEvent, params)
	return env, err
}

// DispatchObserved is Dispatch plus the state the event pipeline started
// from, captured under the same session lock. Transports that broadcast
// deltas use it so a racing dispatch cannot slip between the snapshot and
// the run.
func (m *Manager) DispatchObserved(ctx context.Context, sessionID string, ctrl ports.LiveDispatcher, rawEvent string, params domain.Params) (*domain.State, domain.Envelope, error) {
	var prior *domain.State
	var env domain.Envelope
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		prior = state

		e, err := ctrl.HandleEvent(ctx, rawEvent, params, state)
		if err != nil {
			// Unknown events leave the session untouched; it may keep
			// receiving valid ones.
			return err
		}
		if e.State != nil {
			e.State = e.State.WithSessionID(sessionID)
			if err := m.store.Save(ctx, sessionID, e.State); err != nil {
				return fmt.Errorf("failed to persist session: %w", err)
			}
		}
		env = e
		return nil
	})
	return prior, env, err
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		return err
	})
	return state, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Exists reports whether the session is present in the store.
func (m *Manager) Exists(ctx context.Context, sessionID string) (bool, error) {
	_, err := m.Load(ctx, sessionID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	return false, err
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
