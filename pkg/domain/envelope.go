package domain

// Disposition tells the transport what to do with the pipeline result.
type Disposition string

const (
	// DispositionContinue means the mount succeeded and the session stays
	// on the current action with the enclosed state.
	DispositionContinue Disposition = "continue"

	// DispositionNoFurtherAction means the event was handled and no client
	// navigation is required.
	DispositionNoFurtherAction Disposition = "no_further_action"

	// DispositionRedirect means the client must navigate to Target.
	DispositionRedirect Disposition = "redirect"
)

// Envelope is the value returned outward from a pipeline run.
type Envelope struct {
	Disposition Disposition `json:"disposition"`
	Target      string      `json:"target,omitempty"`
	State       *State      `json:"state,omitempty"`
}

// Outcome is what a handler returns to the pipeline: either a plain *State
// (normalized into an Envelope by the pipeline) or an *Envelope built by the
// handler itself, which is passed through verbatim. The interface is sealed
// so the distinction stays a structural check.
type Outcome interface {
	isOutcome()
}

func (*State) isOutcome()    {}
func (*Envelope) isOutcome() {}
