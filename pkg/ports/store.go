package ports

import (
	"context"

	"github.com/aretw0/espalier/pkg/domain"
)

// StateStore defines the interface for persisting session state between
// pipeline runs. The host persists state for the life of the session and
// re-enters it on every event dispatch.
type StateStore interface {
	// Save persists the state for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.State) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.State, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all live sessions.
	List(ctx context.Context) ([]string, error)
}
