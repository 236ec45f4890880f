package domain

// Redirect is the termination marker. Once a State carries it, the pipeline
// stops running business logic and only passthrough is permitted.
type Redirect struct {
	// Target is the location the client should be sent to (e.g. "/articles").
	Target string `json:"target"`
}

// State represents the data threaded through a session's pipeline runs.
//
// State is mutated by replacement only: every mutator returns a new value
// with its own assigns map, so no step can alias another step's data.
// Handlers must always work with the returned value.
type State struct {
	// SessionID identifies the owning session. Set by the session manager
	// at mount; empty for states built directly in tests.
	SessionID string `json:"session_id,omitempty"`

	// Assigns holds application data for the session (user space).
	Assigns map[string]any `json:"assigns"`

	// Redirect, when non-nil, marks the state as terminated for the current
	// pipeline run. See UnlessRedirected.
	Redirect *Redirect `json:"redirect,omitempty"`
}

// NewState creates a clean state with an empty assigns map.
func NewState() *State {
	return &State{
		Assigns: make(map[string]any),
	}
}

// clone produces an isolated copy: the assigns map is duplicated so the
// original is never mutated through the copy.
func (s *State) clone() *State {
	next := &State{
		SessionID: s.SessionID,
		Redirect:  s.Redirect,
		Assigns:   make(map[string]any, len(s.Assigns)),
	}
	for k, v := range s.Assigns {
		next.Assigns[k] = v
	}
	return next
}

// Assign returns a copy of the state with key set to value.
func (s *State) Assign(key string, value any) *State {
	next := s.clone()
	next.Assigns[key] = value
	return next
}

// Merge returns a copy of the state with all entries of values applied.
func (s *State) Merge(values map[string]any) *State {
	next := s.clone()
	for k, v := range values {
		next.Assigns[k] = v
	}
	return next
}

// Value retrieves an assign by key.
func (s *State) Value(key string) (any, bool) {
	v, ok := s.Assigns[key]
	return v, ok
}

// RedirectTo returns a copy of the state carrying the termination marker.
func (s *State) RedirectTo(target string) *State {
	next := s.clone()
	next.Redirect = &Redirect{Target: target}
	return next
}

// ClearRedirect returns a copy of the state without the termination marker.
// The session manager uses it when a persisted state re-enters the event
// pipeline: the marker cancels a single pipeline run, not the session.
func (s *State) ClearRedirect() *State {
	next := s.clone()
	next.Redirect = nil
	return next
}

// WithSessionID returns a copy of the state bound to the given session.
func (s *State) WithSessionID(id string) *State {
	next := s.clone()
	next.SessionID = id
	return next
}

// Redirected reports whether the state carries the termination marker.
func (s *State) Redirected() bool {
	return s != nil && s.Redirect != nil
}
