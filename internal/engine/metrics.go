package engine

import (
	"maps"

	"github.com/owenfs/contagion/internal/agent"
)

// Snapshot is the per-tick compartment census. Snapshots are immutable
// once recorded and the series is append-only.
type Snapshot struct {
	Tick        uint64 `json:"tick" db:"tick" msgpack:"tick"`
	Susceptible int    `json:"susceptible" db:"susceptible" msgpack:"susceptible"`
	Exposed     int    `json:"exposed" db:"exposed" msgpack:"exposed"`
	Infectious  int    `json:"infectious" db:"infectious" msgpack:"infectious"`
	Recovered   int    `json:"recovered" db:"recovered" msgpack:"recovered"`
	Dead        int    `json:"dead" db:"dead" msgpack:"dead"`

	// Variants maps variant name to active carrier count. Nil when
	// variant tracking is disabled.
	Variants map[string]int `json:"variants,omitempty" msgpack:"variants,omitempty"`
}

// Total returns the population accounted for by the snapshot.
func (s Snapshot) Total() int {
	return s.Susceptible + s.Exposed + s.Infectious + s.Recovered + s.Dead
}

// Count returns the census for one compartment.
func (s Snapshot) Count(st agent.State) int {
	switch st {
	case agent.Susceptible:
		return s.Susceptible
	case agent.Exposed:
		return s.Exposed
	case agent.Infectious:
		return s.Infectious
	case agent.Recovered:
		return s.Recovered
	case agent.Dead:
		return s.Dead
	}
	return 0
}

// Event records one state transition.
type Event struct {
	Tick    uint64      `json:"tick" db:"tick"`
	AgentID agent.ID    `json:"agent_id" db:"agent_id"`
	From    agent.State `json:"from"`
	To      agent.State `json:"to"`
}

// Collector aggregates the per-tick series and the optional transition
// event log.
type Collector struct {
	series       []Snapshot
	events       []Event
	recordEvents bool
}

// NewCollector creates a collector. recordEvents keeps the full
// per-transition log alongside the census series.
func NewCollector(recordEvents bool) *Collector {
	return &Collector{recordEvents: recordEvents}
}

// Record appends a snapshot of the population at the given tick.
func (c *Collector) Record(tick uint64, pop *agent.Population, variants map[string]int) Snapshot {
	counts := pop.Counts()
	snap := Snapshot{
		Tick:        tick,
		Susceptible: counts[agent.Susceptible],
		Exposed:     counts[agent.Exposed],
		Infectious:  counts[agent.Infectious],
		Recovered:   counts[agent.Recovered],
		Dead:        counts[agent.Dead],
	}
	if variants != nil {
		snap.Variants = maps.Clone(variants)
	}
	c.series = append(c.series, snap)
	return snap
}

// LogTransition appends a transition event when event recording is on.
func (c *Collector) LogTransition(tick uint64, id agent.ID, from, to agent.State) {
	if !c.recordEvents {
		return
	}
	c.events = append(c.events, Event{Tick: tick, AgentID: id, From: from, To: to})
}

// Series returns a copy of the full ordered snapshot sequence.
func (c *Collector) Series() []Snapshot {
	out := make([]Snapshot, len(c.series))
	copy(out, c.series)
	return out
}

// Events returns a copy of the transition event log.
func (c *Collector) Events() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Latest returns the most recent snapshot.
func (c *Collector) Latest() (Snapshot, bool) {
	if len(c.series) == 0 {
		return Snapshot{}, false
	}
	return c.series[len(c.series)-1], true
}

// Len returns the number of recorded snapshots.
func (c *Collector) Len() int { return len(c.series) }
