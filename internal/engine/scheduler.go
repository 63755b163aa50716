// Package engine drives the tick loop: movement, contact resolution,
// transmission, state transitions, and metrics collection, in a fixed
// order that makes every run a pure function of its scenario and seed.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/owenfs/contagion/internal/agent"
	"github.com/owenfs/contagion/internal/config"
	"github.com/owenfs/contagion/internal/disease"
	"github.com/owenfs/contagion/internal/entropy"
	"github.com/owenfs/contagion/internal/space"
)

// StopReason says why a run ended. All reasons are normal termination.
type StopReason string

const (
	StopMaxTicks     StopReason = "max_ticks"
	StopExtinguished StopReason = "extinguished"
	StopThreshold    StopReason = "threshold"
	StopCancelled    StopReason = "cancelled"
)

// Simulation owns the complete run state and the single authoritative
// stepping function. The population arena is mutated only inside Step;
// all query methods return copies.
type Simulation struct {
	mu sync.RWMutex

	scenario config.Scenario
	streams  *entropy.Manager
	pop      *agent.Population
	index    space.Index
	grid     *space.Grid // non-nil in grid mode

	registry *disease.Registry
	machine  *disease.StateMachine
	trans    *disease.Transmission
	policies *PolicySet
	movement Movement
	metrics  *Collector

	clock         uint64
	workers       int
	hadInfections bool
	stopped       StopReason

	// pending exposures, reused across ticks.
	pendingOrder  []agent.ID
	pendingSource map[agent.ID]agent.ID
}

// New builds a simulation from a validated scenario. It fails with a
// *config.ValidationError before creating any state if the scenario is
// malformed.
func New(scenario config.Scenario) (*Simulation, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	streams := entropy.NewManager(scenario.Seed)

	bits, mutProb := 0, 0.0
	if scenario.Disease.Variants.Enabled {
		bits = scenario.Disease.Variants.GenomeBits
		mutProb = scenario.Disease.Variants.MutationProb
	}
	registry := disease.NewRegistry(bits, mutProb, scenario.Disease.TransmissionProb, scenario.Disease.FatalityProb)

	machine := disease.NewStateMachine(map[agent.State]disease.DurationDist{
		agent.Exposed:    toDurationDist(scenario.Disease.ExposedDuration),
		agent.Infectious: toDurationDist(scenario.Disease.InfectiousDuration),
	}, registry, streams.Stream(entropy.StreamDuration))

	s := &Simulation{
		scenario:      scenario,
		streams:       streams,
		pop:           agent.NewPopulation(scenario.N, scenario.RemovalOnDeath),
		registry:      registry,
		machine:       machine,
		trans:         disease.NewTransmission(registry, streams.Stream(entropy.StreamTransmission), streams.Stream(entropy.StreamMutation)),
		policies:      NewPolicySet(scenario.Policies),
		movement:      newMovement(scenario),
		metrics:       NewCollector(scenario.RecordEvents),
		workers:       max(scenario.Workers, 1),
		pendingSource: make(map[agent.ID]agent.ID),
	}

	if err := s.buildIndex(); err != nil {
		return nil, err
	}
	s.placeAgents()
	s.seedStates()
	s.hadInfections = s.pop.ActiveInfections() > 0

	// Tick 0 snapshot: the initial condition.
	s.metrics.Record(0, s.pop, s.variantCounts())

	slog.Info("simulation initialized",
		"scenario", scenario.Name,
		"seed", scenario.Seed,
		"n", scenario.N,
		"mode", scenario.Spatial.Mode,
		"infectious", s.pop.Count(agent.Infectious),
		"exposed", s.pop.Count(agent.Exposed),
	)
	return s, nil
}

func toDurationDist(d config.Duration) disease.DurationDist {
	return disease.DurationDist{
		Kind:  disease.DurationKind(d.Dist),
		Value: d.Value,
		Min:   d.Min,
		Max:   d.Max,
		Mu:    d.Mu,
		Sigma: d.Sigma,
	}
}

func (s *Simulation) buildIndex() error {
	sp := s.scenario.Spatial
	switch sp.Mode {
	case config.ModeGrid:
		s.grid = space.NewGrid(sp.Width, sp.Height, sp.Radius)
		s.index = s.grid
	case config.ModeNetwork:
		stream := s.streams.Stream(entropy.StreamContact)
		switch sp.Topology {
		case config.TopologyErdosRenyi:
			s.index = space.NewRandomNetwork(s.scenario.N, sp.AvgDegree, stream)
		case config.TopologySmallWorld:
			s.index = space.NewSmallWorldNetwork(s.scenario.N, sp.SmallWorldK, sp.RewireProb, stream)
		case config.TopologyEdges:
			net, err := space.NewNetworkFromEdges(s.scenario.N, sp.Edges)
			if err != nil {
				return fmt.Errorf("build contact network: %w", err)
			}
			s.index = net
		}
	}
	return nil
}

// placeAgents draws uniform positions in grid mode. Network agents are
// their own nodes and carry no position.
func (s *Simulation) placeAgents() {
	if s.grid == nil {
		return
	}
	stream := s.streams.Stream(entropy.StreamPlacement)
	for i := 0; i < s.scenario.N; i++ {
		s.pop.SetPosition(agent.ID(i), agent.Position{
			X: stream.Float64() * s.scenario.Spatial.Width,
			Y: stream.Float64() * s.scenario.Spatial.Height,
		})
	}
}

// seedStates allocates initial compartments by largest-remainder
// apportionment of the configured fractions, assigns them to agents
// through a placement-stream shuffle, and samples dwell durations for
// seeded Exposed and Infectious agents in ID order.
func (s *Simulation) seedStates() {
	n := s.scenario.N
	counts := apportion(s.scenario.InitialStates, n)

	assignment := make([]agent.State, 0, n)
	for st := agent.Susceptible; st <= agent.Dead; st++ {
		for i := 0; i < counts[st]; i++ {
			assignment = append(assignment, st)
		}
	}
	perm := s.streams.Stream(entropy.StreamPlacement).Perm(n)

	states := make([]agent.State, n)
	for i, slot := range perm {
		states[slot] = assignment[i]
	}
	for i := 0; i < n; i++ {
		st := states[i]
		if st == agent.Susceptible {
			continue
		}
		s.pop.Seed(agent.ID(i), st, s.machine.SampleDuration(st))
	}
}

// apportion turns fractions into integer compartment counts summing to
// exactly n, assigning leftovers to the largest remainders with state
// order as the tie break.
func apportion(fractions map[string]float64, n int) [agent.NumStates]int {
	var counts [agent.NumStates]int
	type rem struct {
		state agent.State
		frac  float64
	}
	var rems []rem
	assigned := 0
	for st := agent.Susceptible; st <= agent.Dead; st++ {
		f := fractions[st.String()]
		exact := f * float64(n)
		base := int(exact)
		counts[st] = base
		assigned += base
		rems = append(rems, rem{state: st, frac: exact - float64(base)})
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; assigned < n; i++ {
		counts[rems[i%len(rems)].state]++
		assigned++
	}
	return counts
}

// Step advances exactly one tick and returns the new snapshot. Phase
// order is fixed: movement, index rebuild, pair transmission, exposure
// application, vaccination, duration progression, metrics, clock.
func (s *Simulation) Step(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(ctx)
}

func (s *Simulation) step(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	tick := s.clock + 1

	// 1. Movement.
	s.movement.Move(s.pop, tick, s.streams.Stream(entropy.StreamMovement))

	// 2. Index rebuild; distancing scales the effective radius first.
	if s.grid != nil {
		s.grid.SetQueryRadius(s.scenario.Spatial.Radius * s.policies.ContactFactor(tick))
	}
	if err := s.index.Rebuild(s.pop); err != nil {
		return Snapshot{}, err
	}
	if err := s.index.Audit(s.pop); err != nil {
		return Snapshot{}, err
	}

	// 3. Transmission over each unordered eligible pair. Exposures are
	// buffered: an agent exposed mid-tick stays Susceptible to every
	// pair evaluation this tick and cannot itself transmit.
	s.pendingOrder = s.pendingOrder[:0]
	clear(s.pendingSource)
	for _, pair := range s.index.Pairs(s.pop, s.workers) {
		a, b := s.pop.Get(pair.A), s.pop.Get(pair.B)
		if !disease.Eligible(a, b) {
			continue
		}
		source, target := a, b
		if b.State == agent.Infectious {
			source, target = b, a
		}
		modifier := s.policies.TransmissionFactor(tick, source.Quarantined)
		if s.trans.Attempt(source, modifier) {
			if _, dup := s.pendingSource[target.ID]; !dup {
				s.pendingSource[target.ID] = source.ID
				s.pendingOrder = append(s.pendingOrder, target.ID)
			}
		}
	}

	// 4. Apply buffered exposures in event order.
	for _, target := range s.pendingOrder {
		source := s.pop.Get(s.pendingSource[target])
		strain := s.trans.Inherit(source, tick)
		dur := s.machine.SampleDuration(agent.Exposed)
		if err := s.pop.ApplyTransition(target, agent.Exposed, tick, dur); err != nil {
			return Snapshot{}, err
		}
		s.pop.SetStrain(target, strain)
		s.metrics.LogTransition(tick, target, agent.Susceptible, agent.Exposed)
	}

	// 4b. Vaccination moves remaining susceptibles to Recovered.
	if vp := s.policies.VaccinationProb(tick); vp > 0 {
		stream := s.streams.Stream(entropy.StreamPolicy)
		for i := 0; i < s.pop.Size(); i++ {
			id := agent.ID(i)
			if s.pop.Get(id).State != agent.Susceptible {
				continue
			}
			if stream.Float64() < vp {
				if err := s.pop.ApplyTransition(id, agent.Recovered, tick, 0); err != nil {
					return Snapshot{}, err
				}
				s.metrics.LogTransition(tick, id, agent.Susceptible, agent.Recovered)
			}
		}
	}

	// 5. Duration-based progression in ascending ID order. Agents that
	// entered a state this tick have zero elapsed dwell and never fire.
	quarantineFraction := s.policies.QuarantineFraction(tick)
	for i := 0; i < s.pop.Size(); i++ {
		id := agent.ID(i)
		a := s.pop.Get(id)
		next, fired := s.machine.Next(a, tick)
		if !fired {
			continue
		}
		var dur uint64
		if next == agent.Infectious {
			dur = s.machine.SampleDuration(agent.Infectious)
		}
		if err := s.pop.ApplyTransition(id, next, tick, dur); err != nil {
			return Snapshot{}, err
		}
		if next == agent.Infectious && quarantineFraction > 0 {
			if s.streams.Stream(entropy.StreamPolicy).Float64() < quarantineFraction {
				s.pop.SetQuarantined(id, true)
			}
		}
		s.metrics.LogTransition(tick, id, a.State, next)
	}

	// 6. Metrics, 7. clock.
	snap := s.metrics.Record(tick, s.pop, s.variantCounts())
	s.clock = tick
	if s.pop.ActiveInfections() > 0 {
		s.hadInfections = true
	}
	return snap, nil
}

func (s *Simulation) variantCounts() map[string]int {
	if !s.scenario.Disease.Variants.Enabled {
		return nil
	}
	out := make(map[string]int)
	for code, count := range s.pop.StrainCounts() {
		out[s.registry.Name(code)] += count
	}
	return out
}

// terminal reports whether the run is over and why. Called with the
// lock held, between ticks.
func (s *Simulation) terminal(maxTicks uint64) (StopReason, bool) {
	if s.hadInfections && s.pop.ActiveInfections() == 0 {
		return StopExtinguished, true
	}
	if th := s.scenario.Disease.InfectionThreshold; th > 0 {
		if float64(s.pop.Count(agent.Infectious))/float64(s.pop.Size()) >= th {
			return StopThreshold, true
		}
	}
	if s.clock >= maxTicks {
		return StopMaxTicks, true
	}
	return "", false
}

// Run steps until normal termination: outbreak extinguished, the
// optional infection threshold reached, or maxTicks elapsed (zero
// means the scenario's max_ticks). Cancellation is honored at tick
// boundaries only, so a stopped run always has consistent metrics.
// It returns the full metrics series.
func (s *Simulation) Run(ctx context.Context, maxTicks uint64) ([]Snapshot, StopReason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxTicks == 0 {
		maxTicks = s.scenario.MaxTicks
	}

	for {
		if reason, done := s.terminal(maxTicks); done {
			s.stopped = reason
			slog.Info("run finished", "reason", reason, "tick", s.clock)
			return s.metrics.Series(), reason, nil
		}
		select {
		case <-ctx.Done():
			s.stopped = StopCancelled
			slog.Info("run cancelled", "tick", s.clock)
			return s.metrics.Series(), StopCancelled, nil
		default:
		}
		if _, err := s.step(context.Background()); err != nil {
			return nil, "", err
		}
	}
}
