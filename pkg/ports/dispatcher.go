package ports

import (
	"context"

	"github.com/aretw0/espalier/pkg/domain"
)

// LiveDispatcher is the interface adapters (HTTP, MCP, session manager)
// consume to drive a controller. Both calls are synchronous: the pipeline
// completes and returns an envelope before the next dispatch for the same
// session may begin.
type LiveDispatcher interface {
	// Mount runs the mount pipeline for a session's initial mount.
	Mount(ctx context.Context, rawAction string, params domain.Params, sess domain.Session) (domain.Envelope, error)

	// HandleEvent runs the event pipeline against the current persisted
	// session state.
	HandleEvent(ctx context.Context, rawEvent string, params domain.Params, state *domain.State) (domain.Envelope, error)

	// Render resolves the renderable output for a registered action.
	Render(ctx context.Context, rawAction string, state *domain.State) (*domain.Rendered, error)
}
