package domain

import (
	"reflect"
	"testing"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old      *State
		new      *State
		wantDiff *StateDiff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1},
			},
			wantDiff: &StateDiff{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1},
			},
		},
		{
			name: "No Changes",
			old: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1},
			},
			new: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1},
			},
			wantDiff: nil,
		},
		{
			name: "Changed and Added Keys",
			old: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1, "b": "x"},
			},
			new: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 2, "b": "x", "c": true},
			},
			wantDiff: &StateDiff{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 2, "c": true},
			},
		},
		{
			name: "Deleted Key Becomes Nil",
			old: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1, "gone": "bye"},
			},
			new: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1},
			},
			wantDiff: &StateDiff{
				SessionID: "sess-1",
				Assigns:   map[string]any{"gone": nil},
			},
		},
		{
			name: "New Redirect Marker",
			old: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1},
			},
			new: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1},
				Redirect:  &Redirect{Target: "/articles"},
			},
			wantDiff: &StateDiff{
				SessionID: "sess-1",
				Redirect:  &Redirect{Target: "/articles"},
			},
		},
		{
			name: "Pre-Existing Redirect Is Not Repeated",
			old: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1},
				Redirect:  &Redirect{Target: "/articles"},
			},
			new: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1},
				Redirect:  &Redirect{Target: "/articles"},
			},
			wantDiff: nil,
		},
		{
			name: "Nil New State",
			old: &State{
				SessionID: "sess-1",
				Assigns:   map[string]any{"a": 1},
			},
			new:      nil,
			wantDiff: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if !reflect.DeepEqual(got, tt.wantDiff) {
				t.Errorf("Diff() = %+v, want %+v", got, tt.wantDiff)
			}
		})
	}
}
