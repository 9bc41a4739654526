package lifecycle

import "fmt"

// State is where a lifecycle stands between signal and exit.
type State string

const (
	StateIdle         State = "IDLE"
	StateEntryPending State = "ENTRY_PENDING"
	StateOpen         State = "OPEN"
	StateExitPending  State = "EXIT_PENDING"
	StateClosed       State = "CLOSED"
	StateAborted      State = "ABORTED"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateAborted
}

var transitions = map[State][]State{
	// IDLE -> OPEN resumes a position found in the book, IDLE -> EXIT_PENDING
	// liquidates one on a sell signal.
	StateIdle:         {StateEntryPending, StateOpen, StateExitPending},
	StateEntryPending: {StateOpen},
	StateOpen:         {StateExitPending},
	StateExitPending:  {StateClosed},
}

// CanTransition reports whether s may move to next. ABORTED is reachable from
// every non-terminal state.
func (s State) CanTransition(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateAborted {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// machine guards the current state of one run.
type machine struct {
	state    State
	onChange func(from, to State)
}

func (m *machine) to(next State) error {
	if !m.state.CanTransition(next) {
		return fmt.Errorf("illegal transition %s -> %s", m.state, next)
	}
	from := m.state
	m.state = next
	if m.onChange != nil {
		m.onChange(from, next)
	}
	return nil
}
