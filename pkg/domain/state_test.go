package domain

import "testing"

func TestState_AssignReturnsNewValue(t *testing.T) {
	original := NewState().Assign("a", 1)
	modified := original.Assign("a", 2).Assign("b", 3)

	if v, _ := original.Value("a"); v != 1 {
		t.Errorf("Original state mutated: a = %v", v)
	}
	if _, ok := original.Value("b"); ok {
		t.Error("Original state gained key from derived state")
	}
	if v, _ := modified.Value("a"); v != 2 {
		t.Errorf("Expected a = 2 on derived state, got %v", v)
	}
}

func TestState_MergeCopiesAllKeys(t *testing.T) {
	s := NewState().Assign("keep", true)
	merged := s.Merge(map[string]any{"x": 1, "y": 2})

	if v, _ := merged.Value("keep"); v != true {
		t.Error("Merge dropped existing key")
	}
	if v, _ := merged.Value("x"); v != 1 {
		t.Errorf("Expected x = 1, got %v", v)
	}
	if _, ok := s.Value("x"); ok {
		t.Error("Merge mutated the receiver")
	}
}

func TestState_RedirectLifecycle(t *testing.T) {
	s := NewState()
	if s.Redirected() {
		t.Error("Fresh state should not be redirected")
	}

	redirected := s.RedirectTo("/articles")
	if !redirected.Redirected() {
		t.Error("Expected redirect marker to be set")
	}
	if redirected.Redirect.Target != "/articles" {
		t.Errorf("Expected target /articles, got %s", redirected.Redirect.Target)
	}
	if s.Redirected() {
		t.Error("RedirectTo mutated the receiver")
	}

	cleared := redirected.ClearRedirect()
	if cleared.Redirected() {
		t.Error("ClearRedirect left the marker in place")
	}
	if !redirected.Redirected() {
		t.Error("ClearRedirect mutated the receiver")
	}
}

func TestState_WithSessionID(t *testing.T) {
	s := NewState().Assign("a", 1)
	stamped := s.WithSessionID("sess-1")

	if stamped.SessionID != "sess-1" {
		t.Errorf("Expected session id sess-1, got %s", stamped.SessionID)
	}
	if s.SessionID != "" {
		t.Error("WithSessionID mutated the receiver")
	}
	if v, _ := stamped.Value("a"); v != 1 {
		t.Error("WithSessionID dropped assigns")
	}
}

func TestState_CloneIsolatesAssignsMap(t *testing.T) {
	s := NewState().Assign("nums", 1)
	derived := s.Assign("other", 2)

	// Writing through the derived map must not show up in the original.
	derived.Assigns["nums"] = 99
	if v, _ := s.Value("nums"); v != 1 {
		t.Errorf("Derived map aliases the original: nums = %v", v)
	}
}
