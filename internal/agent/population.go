package agent

// Population owns the full agent arena and the per-state counters that
// make compartment counts an O(1) read. ApplyTransition is the only
// state mutator; everything else reads.
type Population struct {
	agents         []Agent
	counts         [NumStates]int
	removalOnDeath bool
}

// NewPopulation creates n agents with IDs 0..n-1, all Susceptible.
// Initial compartments and positions are assigned by the bootstrap
// through ApplyTransition and SetPosition.
func NewPopulation(n int, removalOnDeath bool) *Population {
	p := &Population{
		agents:         make([]Agent, n),
		removalOnDeath: removalOnDeath,
	}
	for i := range p.agents {
		p.agents[i].ID = ID(i)
	}
	p.counts[Susceptible] = n
	return p
}

// Size returns the initial population size N. Agents are never removed
// from the arena, so this is constant for the life of the run.
func (p *Population) Size() int { return len(p.agents) }

// Get returns a copy of the agent with the given ID.
func (p *Population) Get(id ID) Agent { return p.agents[id] }

// ref returns the mutable arena slot. Internal use only; external
// consumers get copies.
func (p *Population) ref(id ID) *Agent { return &p.agents[id] }

// Count returns the number of agents currently in the given state.
func (p *Population) Count(s State) int { return p.counts[s] }

// Counts returns all per-state counters.
func (p *Population) Counts() [NumStates]int { return p.counts }

// ActiveInfections returns the number of Exposed plus Infectious
// agents. Zero means the outbreak is extinguished.
func (p *Population) ActiveInfections() int {
	return p.counts[Exposed] + p.counts[Infectious]
}

// Each calls fn with a copy of every agent in ascending ID order.
func (p *Population) Each(fn func(Agent)) {
	for i := range p.agents {
		fn(p.agents[i])
	}
}

// Snapshot returns a copy of the whole arena for read-only consumers.
func (p *Population) Snapshot() []Agent {
	out := make([]Agent, len(p.agents))
	copy(out, p.agents)
	return out
}

// SetPosition moves an agent. Used by placement and movement phases;
// it does not touch epidemiological state.
func (p *Population) SetPosition(id ID, pos Position) {
	p.agents[id].Position = pos
}

// SetQuarantined flags or clears quarantine isolation for an agent.
func (p *Population) SetQuarantined(id ID, q bool) {
	p.agents[id].Quarantined = q
}

// InContactQueries reports whether the agent participates in spatial
// and contact queries this tick.
func (p *Population) InContactQueries(id ID) bool {
	return !p.agents[id].Removed
}

// Seed places an agent directly into a compartment during population
// initialization, before tick 0. It bypasses the transition graph;
// once the first tick runs, ApplyTransition is the only mutator.
func (p *Population) Seed(id ID, s State, duration uint64) {
	a := p.ref(id)
	p.counts[a.State]--
	p.counts[s]++
	a.State = s
	a.StateEntryTick = 0
	a.StateDuration = duration
	if s == Dead && p.removalOnDeath {
		a.Removed = true
	}
}

// ApplyTransition moves an agent to a new state at the given tick,
// recording the entry tick and the dwell duration sampled for the new
// state. It returns a *TransitionError if the compartment graph does
// not contain the edge; that always indicates a caller bug and is
// fatal to the run.
func (p *Population) ApplyTransition(id ID, to State, tick, duration uint64) error {
	a := p.ref(id)
	if !CanTransition(a.State, to) {
		return &TransitionError{AgentID: id, From: a.State, To: to, Tick: tick}
	}

	p.counts[a.State]--
	p.counts[to]++

	a.State = to
	a.StateEntryTick = tick
	a.StateDuration = duration

	if to == Dead {
		a.Quarantined = false
		if p.removalOnDeath {
			a.Removed = true
		}
	}
	if to == Recovered {
		a.Strain = 0
		a.Quarantined = false
	}
	return nil
}

// SetStrain assigns the variant genome code an agent carries. Called
// together with the S → E transition.
func (p *Population) SetStrain(id ID, code uint32) {
	p.agents[id].Strain = code
}

// StrainCounts tallies active carriers (Exposed or Infectious) per
// genome code.
func (p *Population) StrainCounts() map[uint32]int {
	out := make(map[uint32]int)
	for i := range p.agents {
		a := &p.agents[i]
		if a.State == Exposed || a.State == Infectious {
			out[a.Strain]++
		}
	}
	return out
}
