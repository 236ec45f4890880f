package domain

// Step is a pure pipeline step: it takes the current state and returns the
// next one. Steps must not retain or mutate their argument.
type Step func(*State) *State

// UnlessRedirected applies step only if the state does not already carry the
// termination marker; otherwise the state is returned unchanged.
//
// The pipelines use this to gate every hook after the first, and handler
// authors can use it to chain their own conditional sub-steps:
//
//	s = domain.UnlessRedirected(s, requireOwner)
//	s = domain.UnlessRedirected(s, loadArticle)
func UnlessRedirected(s *State, step Step) *State {
	if s.Redirected() {
		return s
	}
	return step(s)
}

// Pipe threads the state through steps in order, gating each one with
// UnlessRedirected. The first step to set the marker wins; the rest are
// skipped.
func Pipe(s *State, steps ...Step) *State {
	for _, step := range steps {
		s = UnlessRedirected(s, step)
	}
	return s
}
