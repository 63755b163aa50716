package disease

import (
	"github.com/owenfs/contagion/internal/agent"
	"github.com/owenfs/contagion/internal/entropy"
)

// StateMachine decides duration-based progression: Exposed → Infectious
// once the incubation dwell elapses, Infectious → Recovered or Dead
// once the infectious dwell elapses. The fatality branch uses the
// strain's fatality probability and one draw from the duration stream
// per expiring infectious agent, evaluated in ascending agent ID order
// by the scheduler so the draw sequence is fixed.
type StateMachine struct {
	durations map[agent.State]DurationDist
	registry  *Registry
	durStream *entropy.Stream
}

// NewStateMachine wires the per-compartment dwell distributions, the
// variant registry for fatality lookups, and the duration stream.
func NewStateMachine(durations map[agent.State]DurationDist, registry *Registry, durStream *entropy.Stream) *StateMachine {
	return &StateMachine{
		durations: durations,
		registry:  registry,
		durStream: durStream,
	}
}

// SampleDuration draws the dwell time for an agent entering the given
// state. States without duration-based progression get zero.
func (m *StateMachine) SampleDuration(s agent.State) uint64 {
	d, ok := m.durations[s]
	if !ok {
		return 0
	}
	return d.Sample(m.durStream)
}

// Next returns the state an agent progresses to at the given tick, or
// ok=false when no duration-based transition fires. Exposure events are
// not handled here; the scheduler applies them beforehand, and duration
// expiry always takes precedence over a same-tick exposure because
// terminal and infectious states are not exposable.
func (m *StateMachine) Next(a agent.Agent, tick uint64) (agent.State, bool) {
	if !a.DwellElapsed(tick) {
		return a.State, false
	}
	switch a.State {
	case agent.Exposed:
		return agent.Infectious, true
	case agent.Infectious:
		fatality := m.registry.Get(a.Strain).Fatality
		if m.durStream.Float64() < fatality {
			return agent.Dead, true
		}
		return agent.Recovered, true
	default:
		return a.State, false
	}
}
