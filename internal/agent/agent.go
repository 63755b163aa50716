package agent

// ID is a unique, stable identifier for an agent. IDs are assigned
// densely from 0 at population initialization and double as the agent's
// index into the population arena and its node in network mode.
type ID int

// Position is a point in continuous 2D space (grid mode). In network
// mode positions are unused and the agent's ID is its graph node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Agent is the unit entity of the simulation.
type Agent struct {
	ID       ID       `json:"id"`
	Position Position `json:"position"`
	State    State    `json:"state"`

	// StateEntryTick is the tick the agent entered its current state.
	StateEntryTick uint64 `json:"state_entry_tick"`

	// StateDuration is the dwell time sampled at state entry. Zero for
	// states without duration-based progression.
	StateDuration uint64 `json:"state_duration"`

	// Strain is the genome code of the variant carried while Exposed or
	// Infectious. Meaningless in other states.
	Strain uint32 `json:"strain,omitempty"`

	// Quarantined marks an agent isolated by an active quarantine
	// policy; it scales the agent's outgoing transmission.
	Quarantined bool `json:"quarantined,omitempty"`

	// Removed excludes a dead agent from spatial and contact queries
	// when removal-on-death is configured. Removed agents stay in the
	// arena and in historical metrics.
	Removed bool `json:"removed,omitempty"`
}

// Immune reports whether the agent resists infection.
func (a *Agent) Immune() bool { return a.State.Immune() }

// DwellElapsed reports whether the agent's sampled dwell time has
// elapsed at the given tick.
func (a *Agent) DwellElapsed(tick uint64) bool {
	return a.StateDuration > 0 && tick-a.StateEntryTick >= a.StateDuration
}
