// Package agent provides the agent data model and the population arena.
// Agents live in a flat slice indexed by ID so spatial binning and contact
// resolution operate on contiguous memory; all cross-agent relationships
// are expressed as ID pairs, never pointers.
package agent

import "fmt"

// State is an agent's epidemiological compartment.
type State uint8

const (
	Susceptible State = iota
	Exposed
	Infectious
	Recovered
	Dead

	// NumStates is the number of compartments.
	NumStates = 5
)

var stateNames = [NumStates]string{"susceptible", "exposed", "infectious", "recovered", "dead"}

// String returns the lowercase compartment name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ParseState maps a compartment name back to its State.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return 0, false
}

// Terminal reports whether the state has no outgoing transitions.
func (s State) Terminal() bool { return s == Recovered || s == Dead }

// Immune reports whether the state resists further infection.
func (s State) Immune() bool { return s.Terminal() }

// Contagious reports whether an agent in this state can transmit.
func (s State) Contagious() bool { return s == Infectious }

// transitions is the fixed compartment graph:
// S → E on exposure, E → I on dwell expiry, I → R or D on dwell expiry.
// Vaccination moves S directly to R. Recovered and Dead are terminal.
var transitions = map[State][]State{
	Susceptible: {Exposed, Recovered},
	Exposed:     {Infectious},
	Infectious:  {Recovered, Dead},
	Recovered:   nil,
	Dead:        nil,
}

// CanTransition reports whether the compartment graph contains from → to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports an attempted transition absent from the
// compartment graph. It signals a logic defect in the caller, never a
// transient condition, and is always fatal to the run.
type TransitionError struct {
	AgentID ID
	From    State
	To      State
	Tick    uint64
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: agent %d %s → %s at tick %d",
		e.AgentID, e.From, e.To, e.Tick)
}
