package domain

import (
	"reflect"
)

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	// Assigns contains only changed or added keys. For deletions, the key
	// is present with a nil value. Clients merge these into local state.
	Assigns map[string]any `json:"assigns,omitempty"`

	// Redirect is set when the new state carries the termination marker
	// and the old one did not.
	Redirect *Redirect `json:"redirect,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, the diff represents the entire newState (initial load).
// Returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
		Assigns:   diffAssigns(oldState, newState),
	}

	if newState.Redirected() && (oldState == nil || !oldState.Redirected()) {
		diff.Redirect = newState.Redirect
	}

	if len(diff.Assigns) == 0 && diff.Redirect == nil {
		return nil
	}
	return diff
}

func diffAssigns(oldState, newState *State) map[string]any {
	delta := make(map[string]any)

	var old map[string]any
	if oldState != nil {
		old = oldState.Assigns
	}

	for k, v := range newState.Assigns {
		prev, existed := old[k]
		if !existed || !reflect.DeepEqual(prev, v) {
			delta[k] = v
		}
	}

	// Deletions: present in old, absent in new.
	for k := range old {
		if _, ok := newState.Assigns[k]; !ok {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}
