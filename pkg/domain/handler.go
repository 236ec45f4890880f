package domain

import "context"

// HandlerKey is a validated internal handler identifier. Keys are only ever
// produced by the registry from its own frozen name set, never from raw
// client input.
type HandlerKey string

// Session is the payload supplied by the session store at mount time.
// It is consumed once; event dispatch never re-fetches it.
type Session map[string]any

// HandlerFunc is a mount-action or event-handler body. It receives the
// current state and the untrusted params, and returns either a *State or a
// handler-built *Envelope (the escape hatch). Returning nil is treated as
// "keep the current state".
type HandlerFunc func(ctx context.Context, s *State, p Params) (Outcome, error)

// SessionHook folds session data into the state at mount (e.g. resolving a
// principal). It may set the termination marker to request an early redirect.
type SessionHook func(ctx context.Context, s *State, sess Session) *State

// StepHook is a cross-cutting pre-dispatch hook (auth checks, shared
// assigns). It runs gated by UnlessRedirected.
type StepHook func(ctx context.Context, s *State, key HandlerKey, p Params) *State

// DispatchFunc performs the default name-selects-behavior dispatch for a
// validated key.
type DispatchFunc func(ctx context.Context, s *State, key HandlerKey, p Params) (Outcome, error)

// DispatchOverride replaces a dispatch step. The default behavior is passed
// as next so the override can layer cross-cutting logic and still delegate:
//
//	func(ctx, s, key, p, next) (Outcome, error) {
//		s = s.Assign("traced", true)
//		return next(ctx, s, key, p)
//	}
type DispatchOverride func(ctx context.Context, s *State, key HandlerKey, p Params, next DispatchFunc) (Outcome, error)

// Rendered is the output of the render hook, handed to the transport.
type Rendered struct {
	// View is the resolved view identifier (e.g. "ArticlesView").
	View string `json:"view"`
	// Template is the template name, derived from the action.
	Template string `json:"template"`
	// Content is the template body as supplied by the view resolver.
	Content string `json:"content"`
}

// RenderFunc resolves the renderable output for an action and state.
type RenderFunc func(ctx context.Context, key HandlerKey, s *State) (*Rendered, error)

// RenderOverride replaces the render hook while keeping the conventional
// resolution reachable through next.
type RenderOverride func(ctx context.Context, key HandlerKey, s *State, next RenderFunc) (*Rendered, error)
