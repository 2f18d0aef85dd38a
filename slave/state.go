package slave

import "fmt"

// State is one node in spec §4.4's slave state machine.
type State uint32

const (
	StateInitial State = iota
	StateDefining
	StateDefined
	StateStarted
	StateScanning
	StateStopping
	StateCleaning
	StateAborting
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateDefining:
		return "DEFINING"
	case StateDefined:
		return "DEFINED"
	case StateStarted:
		return "STARTED"
	case StateScanning:
		return "SCANNING"
	case StateStopping:
		return "STOPPING"
	case StateCleaning:
		return "CLEANING"
	case StateAborting:
		return "ABORTING"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// transitions is the table-driven allow-list spec §4.4 calls for
// ("Allowed transitions are table-driven and checked on every
// setState; an illegal transition is fatal"), modelled the way
// eventloop/state.go's FastState.TryTransition validates a from/to
// pair rather than trusting the caller.
var transitions = map[State]map[State]bool{
	StateInitial:  {StateDefining: true},
	StateDefining: {StateDefined: true, StateAborting: true},
	StateDefined:  {StateStarted: true, StateAborting: true},
	StateStarted:  {StateScanning: true, StateStopping: true, StateAborting: true},
	StateScanning: {StateStarted: true, StateAborting: true},
	StateStopping: {StateCleaning: true, StateAborting: true},
	StateCleaning: {StateInitial: true, StateAborting: true},
	StateAborting: {StateInitial: true},
}

// failoverTarget maps a slave's current state to the forced state a
// promoted master imposes during takeover (spec §4.5, point 2):
// "INITIAL→INITIAL, {DEFINING|DEFINED|STARTED|SCANNING|ABORTING}→STARTED,
// {STOPPING|CLEANING}→STOPPING".
func failoverTarget(s State) State {
	switch s {
	case StateInitial:
		return StateInitial
	case StateStopping, StateCleaning:
		return StateStopping
	default:
		return StateStarted
	}
}

// canTransition reports whether from→to is in the allow-list.
func canTransition(from, to State) bool {
	return transitions[from][to]
}
