package pipeline

import "fmt"

// State is the position of a run in the Extract, Transform, Load sequence.
type State int

const (
	StatePending State = iota
	StateExtracted
	StateTransformed
	StateLoaded
	// StateFailed is absorbing: no transition leaves it.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExtracted:
		return "extracted"
	case StateTransformed:
		return "transformed"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// next is the state a successful stage moves to.
var next = map[State]State{
	StatePending:     StateExtracted,
	StateExtracted:   StateTransformed,
	StateTransformed: StateLoaded,
}

// machine tracks a run's state and rejects out-of-order transitions.
type machine struct {
	state State
}

// advance moves to the following state.
func (m *machine) advance() error {
	to, ok := next[m.state]
	if !ok {
		return fmt.Errorf("no transition from %s", m.state)
	}
	m.state = to
	return nil
}

// fail moves to the absorbing failed state.
func (m *machine) fail() {
	m.state = StateFailed
}
