package engine

import (
	"github.com/owenfs/contagion/internal/agent"
	"github.com/owenfs/contagion/internal/config"
	"github.com/owenfs/contagion/internal/disease"
)

// Read-only query surface for external consumers (CLI, HTTP API,
// exporters). Everything returns copies; nothing here can mutate the
// population.

// Tick returns the current clock value.
func (s *Simulation) Tick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

// Scenario returns the scenario the simulation was built from.
func (s *Simulation) Scenario() config.Scenario {
	return s.scenario
}

// StoppedReason returns why the last Run ended, or empty if the
// simulation has not finished a Run.
func (s *Simulation) StoppedReason() StopReason {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// Agents returns a copy of the full agent arena for rendering.
func (s *Simulation) Agents() []agent.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pop.Snapshot()
}

// Counts returns the current per-compartment census.
func (s *Simulation) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := s.pop.Counts()
	out := make(map[string]int, agent.NumStates)
	for st := agent.Susceptible; st <= agent.Dead; st++ {
		out[st.String()] = counts[st]
	}
	return out
}

// ActiveInfections returns the current Exposed plus Infectious count.
func (s *Simulation) ActiveInfections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pop.ActiveInfections()
}

// Series returns the cumulative metrics series.
func (s *Simulation) Series() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics.Series()
}

// Events returns the transition event log, if recording is enabled.
func (s *Simulation) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics.Events()
}

// Latest returns the most recent snapshot.
func (s *Simulation) Latest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, _ := s.metrics.Latest()
	return snap
}

// Variants returns every variant observed so far, by value, in
// first-seen order.
func (s *Simulation) Variants() []disease.Variant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.registry.All()
	out := make([]disease.Variant, 0, len(all))
	for _, v := range all {
		out = append(out, *v)
	}
	return out
}

// VariantName resolves a genome code to its display name.
func (s *Simulation) VariantName(code uint32) string {
	return s.registry.Name(code)
}
