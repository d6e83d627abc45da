package rootfinder

import "fmt"

// State is the lifecycle state of the Jacobian factorization.
type State int

const (
	// Uninitialized: Init has not run; no Jacobian or linear solver exists.
	Uninitialized State = iota
	// Stale: the linear solver exists but holds no factorization valid for
	// the current iterate.
	Stale
	// Factorized: the linear solver holds the factorization of the
	// Jacobian at the point recorded with it.
	Factorized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Stale:
		return "stale"
	case Factorized:
		return "factorized"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Event drives factorization state transitions.
type Event int

const (
	// EventInit: Jacobian derived and linear solver bound.
	EventInit Event = iota
	// EventNewInputs: a solve started with new parameters or guess.
	EventNewInputs
	// EventFactorized: the Jacobian at the current iterate was factorized.
	EventFactorized
	// EventFactorizeFailed: factorization failed; any previous
	// factorization is gone.
	EventFactorizeFailed
	// EventInvalidate: the iterate moved and the algorithm does not want to
	// keep the old factorization.
	EventInvalidate
)

func (e Event) String() string {
	switch e {
	case EventInit:
		return "init"
	case EventNewInputs:
		return "new-inputs"
	case EventFactorized:
		return "factorized"
	case EventFactorizeFailed:
		return "factorize-failed"
	case EventInvalidate:
		return "invalidate"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// transitions lists every legal (state, event) pair.
var transitions = map[State]map[Event]State{
	Uninitialized: {
		EventInit: Stale,
	},
	Stale: {
		EventNewInputs:       Stale,
		EventFactorized:      Factorized,
		EventFactorizeFailed: Stale,
		EventInvalidate:      Stale,
	},
	Factorized: {
		EventNewInputs:       Stale,
		EventFactorized:      Factorized,
		EventFactorizeFailed: Stale,
		EventInvalidate:      Stale,
	},
}

// Next returns the state reached from s on e.
func (s State) Next(e Event) (State, error) {
	next, ok := transitions[s][e]
	if !ok {
		return s, fmt.Errorf("rootfinder: illegal transition %s on %s", s, e)
	}
	return next, nil
}
