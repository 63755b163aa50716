package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owenfs/contagion/internal/agent"
	"github.com/owenfs/contagion/internal/config"
)

func fptr(v float64) *float64 { return &v }

// gridScenario is a small grid outbreak with full stochasticity.
func gridScenario() config.Scenario {
	s := config.Default()
	s.Name = "grid-test"
	s.N = 120
	s.Seed = 7
	s.MaxTicks = 150
	s.InitialStates = map[string]float64{"susceptible": 0.95, "infectious": 0.05}
	s.Spatial = config.Spatial{Mode: config.ModeGrid, Width: 30, Height: 30, Radius: 2}
	s.Movement = config.Movement{Strategy: config.MovementRandomWalk, StepSize: 1}
	s.Disease.TransmissionProb = 0.3
	s.Disease.FatalityProb = 0.1
	s.Disease.ExposedDuration = config.Duration{Dist: "fixed", Value: 2}
	s.Disease.InfectiousDuration = config.Duration{Dist: "uniform", Min: 2, Max: 5}
	s.RecordEvents = true
	return s
}

// mixingScenario puts every agent in contact with every other agent
// each tick: a grid whose radius covers the whole area.
func mixingScenario(n int) config.Scenario {
	s := config.Default()
	s.Name = "full-mixing"
	s.N = n
	s.Seed = 1
	s.MaxTicks = 50
	s.InitialStates = map[string]float64{
		"susceptible": 1 - 1/float64(n),
		"infectious":  1 / float64(n),
	}
	s.Spatial = config.Spatial{Mode: config.ModeGrid, Width: 10, Height: 10, Radius: 15}
	s.Movement = config.Movement{Strategy: config.MovementStationary}
	s.Disease.TransmissionProb = 1.0
	s.Disease.FatalityProb = 0
	s.Disease.ExposedDuration = config.Duration{Dist: "fixed", Value: 1}
	s.Disease.InfectiousDuration = config.Duration{Dist: "fixed", Value: 1}
	s.Disease.Variants.Enabled = false
	s.RecordEvents = true
	return s
}

// lineScenario is a 3-node path network 0–1–2 with no one initially
// infectious; tests seed the index case directly.
func lineScenario() config.Scenario {
	s := config.Default()
	s.Name = "line"
	s.N = 3
	s.Seed = 3
	s.MaxTicks = 20
	s.InitialStates = map[string]float64{"susceptible": 1}
	s.Spatial = config.Spatial{
		Mode:     config.ModeNetwork,
		Topology: config.TopologyEdges,
		Edges:    [][2]int{{0, 1}, {1, 2}},
	}
	s.Disease.TransmissionProb = 1.0
	s.Disease.FatalityProb = 0
	s.Disease.ExposedDuration = config.Duration{Dist: "fixed", Value: 1}
	s.Disease.InfectiousDuration = config.Duration{Dist: "fixed", Value: 10}
	s.Disease.Variants.Enabled = false
	return s
}

func TestNew_RejectsInvalidScenario(t *testing.T) {
	s := config.Default()
	s.N = 0
	_, err := New(s)
	require.Error(t, err)

	var ve *config.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRun_Conservation(t *testing.T) {
	sim, err := New(gridScenario())
	require.NoError(t, err)

	series, reason, err := sim.Run(context.Background(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, series)
	assert.Contains(t, []StopReason{StopExtinguished, StopMaxTicks}, reason)

	for _, snap := range series {
		assert.Equal(t, 120, snap.Total(), "conservation broken at tick %d", snap.Tick)
	}
}

func TestRun_MonotonicTerminality(t *testing.T) {
	sim, err := New(gridScenario())
	require.NoError(t, err)

	_, _, err = sim.Run(context.Background(), 0)
	require.NoError(t, err)

	for _, e := range sim.Events() {
		assert.False(t, e.From.Terminal(), "agent %d left terminal state %s at tick %d", e.AgentID, e.From, e.Tick)
		assert.True(t, agent.CanTransition(e.From, e.To), "event %v outside compartment graph", e)
	}
}

func TestRun_ZeroTransmissionDeterminism(t *testing.T) {
	s := gridScenario()
	s.Disease.TransmissionProb = 0
	sim, err := New(s)
	require.NoError(t, err)

	series, _, err := sim.Run(context.Background(), 0)
	require.NoError(t, err)

	initial := series[0].Exposed
	for _, snap := range series {
		assert.LessOrEqual(t, snap.Exposed, initial, "new exposures appeared with zero transmission at tick %d", snap.Tick)
	}
	for _, e := range sim.Events() {
		assert.NotEqual(t, agent.Exposed, e.To, "exposure event with zero transmission probability")
	}
}

func TestRun_Reproducibility(t *testing.T) {
	run := func(workers int) []Snapshot {
		s := gridScenario()
		s.Workers = workers
		sim, err := New(s)
		require.NoError(t, err)
		series, _, err := sim.Run(context.Background(), 0)
		require.NoError(t, err)
		return series
	}

	first := run(1)
	assert.Equal(t, first, run(1), "identical seed and config must reproduce the series")
	assert.Equal(t, first, run(4), "parallel contact evaluation must not change the series")
	assert.Equal(t, first, run(8))
}

func TestRun_NetworkReproducibility(t *testing.T) {
	run := func() []Snapshot {
		s := config.Default()
		s.N = 200
		s.MaxTicks = 300
		sim, err := New(s)
		require.NoError(t, err)
		series, _, err := sim.Run(context.Background(), 0)
		require.NoError(t, err)
		return series
	}
	assert.Equal(t, run(), run())
}

func TestRun_Isolation(t *testing.T) {
	// A single infectious agent with no possible contact ever.
	s := config.Default()
	s.N = 1
	s.MaxTicks = 40
	s.InitialStates = map[string]float64{"infectious": 1}
	s.Spatial = config.Spatial{Mode: config.ModeGrid, Width: 10, Height: 10, Radius: 1}
	s.Movement = config.Movement{Strategy: config.MovementStationary}
	s.Disease.TransmissionProb = 1.0
	s.Disease.FatalityProb = 0
	s.Disease.InfectiousDuration = config.Duration{Dist: "fixed", Value: 5}

	sim, err := New(s)
	require.NoError(t, err)
	series, reason, err := sim.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, StopExtinguished, reason)
	for _, snap := range series {
		assert.Zero(t, snap.Exposed, "isolated agent produced an exposure at tick %d", snap.Tick)
	}
	assert.Equal(t, 1, series[len(series)-1].Recovered)
}

func TestRun_FullMixingScenario(t *testing.T) {
	// N=100, one index case, certain transmission, dwell 1+1: everyone
	// is exposed on tick 1 and no Susceptible remain from then on.
	sim, err := New(mixingScenario(100))
	require.NoError(t, err)

	series, reason, err := sim.Run(context.Background(), 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(series), 4)

	tick1 := series[1]
	assert.Equal(t, 0, tick1.Susceptible, "certain transmission with full mixing exposes everyone at once")
	assert.Equal(t, 99, tick1.Exposed)
	assert.Equal(t, 1, tick1.Recovered, "index case recovers as its dwell expires")

	tick2 := series[2]
	assert.Equal(t, 0, tick2.Susceptible)
	assert.Equal(t, 99, tick2.Infectious)

	tick3 := series[3]
	assert.Equal(t, 100, tick3.Recovered)
	assert.Equal(t, StopExtinguished, reason)

	exposedEver := make(map[agent.ID]bool)
	for _, e := range sim.Events() {
		if e.To == agent.Exposed {
			exposedEver[e.AgentID] = true
		}
	}
	assert.Len(t, exposedEver, 99, "every initially susceptible agent passed through Exposed by tick 2")
}

func TestRun_NoOutbreakRunsToMaxTicks(t *testing.T) {
	// N=50, no index case: the series is flat and termination is
	// max_ticks, not extinction.
	s := mixingScenario(50)
	s.InitialStates = map[string]float64{"susceptible": 1}
	s.MaxTicks = 25

	sim, err := New(s)
	require.NoError(t, err)
	series, reason, err := sim.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, StopMaxTicks, reason)
	require.Len(t, series, 26, "tick 0 plus max_ticks snapshots")
	for _, snap := range series {
		assert.Equal(t, 50, snap.Susceptible, "zero-outbreak series must stay constant at tick %d", snap.Tick)
	}
}

func TestStep_ExposureBufferedUntilPairsEvaluated(t *testing.T) {
	// Path 0–1–2 with certain transmission: infection takes two ticks
	// per hop (exposure, then progression), so an agent exposed
	// mid-tick never transmits within that tick.
	sim, err := New(lineScenario())
	require.NoError(t, err)
	sim.pop.Seed(0, agent.Infectious, 10)
	sim.hadInfections = true

	ctx := context.Background()

	_, err = sim.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, agent.Exposed, sim.pop.Get(1).State)
	assert.Equal(t, agent.Susceptible, sim.pop.Get(2).State, "exposure must not propagate two hops in one tick")

	_, err = sim.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, agent.Infectious, sim.pop.Get(1).State)
	assert.Equal(t, agent.Susceptible, sim.pop.Get(2).State, "agent 1 was still Exposed during this tick's pair evaluation")

	_, err = sim.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, agent.Exposed, sim.pop.Get(2).State)
}

func TestRun_InfectionThresholdTerminates(t *testing.T) {
	s := mixingScenario(100)
	s.Disease.InfectionThreshold = 0.5

	sim, err := New(s)
	require.NoError(t, err)
	_, reason, err := sim.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, StopThreshold, reason)
	assert.GreaterOrEqual(t, sim.Latest().Infectious, 50)
}

func TestRun_CancelledBetweenTicks(t *testing.T) {
	sim, err := New(gridScenario())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	series, reason, err := sim.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, reason)
	require.Len(t, series, 1, "cancelled before the first tick leaves only the initial snapshot")
	assert.Equal(t, 120, series[0].Total(), "metrics stay consistent after cancellation")
}

func TestStep_VaccinationPolicy(t *testing.T) {
	s := mixingScenario(10)
	s.InitialStates = map[string]float64{"susceptible": 1}
	s.Policies = []config.Policy{{Name: "mass-vaccination", StartTick: 1, VaccinationProb: 1}}

	sim, err := New(s)
	require.NoError(t, err)

	snap, err := sim.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Susceptible)
	assert.Equal(t, 10, snap.Recovered, "vaccination moves susceptibles straight to Recovered")
}

func TestStep_QuarantineBlocksTransmission(t *testing.T) {
	s := lineScenario()
	s.Policies = []config.Policy{{
		Name:               "isolate-cases",
		QuarantineFraction: 1,
		QuarantineFactor:   fptr(0),
	}}

	sim, err := New(s)
	require.NoError(t, err)
	// Seed the index case as Exposed so it enters Infectious through
	// progression, where the quarantine flag is applied.
	sim.pop.Seed(0, agent.Exposed, 1)
	sim.hadInfections = true

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err = sim.Step(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, agent.Infectious, sim.pop.Get(0).State)
	assert.True(t, sim.pop.Get(0).Quarantined)
	assert.Equal(t, agent.Susceptible, sim.pop.Get(1).State, "quarantined source must not transmit")
	assert.Equal(t, agent.Susceptible, sim.pop.Get(2).State)
}

func TestStep_DistancingShrinksContacts(t *testing.T) {
	s := config.Default()
	s.N = 2
	s.MaxTicks = 10
	s.InitialStates = map[string]float64{"susceptible": 0.5, "infectious": 0.5}
	s.Spatial = config.Spatial{Mode: config.ModeGrid, Width: 10, Height: 10, Radius: 3}
	s.Movement = config.Movement{Strategy: config.MovementStationary}
	s.Disease.TransmissionProb = 1.0
	s.Disease.InfectiousDuration = config.Duration{Dist: "fixed", Value: 10}
	s.Disease.Variants.Enabled = false
	s.Policies = []config.Policy{{Name: "distancing", StartTick: 1, ContactFactor: fptr(0.01)}}

	sim, err := New(s)
	require.NoError(t, err)
	// Put the agents a fixed distance apart: within base radius but
	// outside the distanced radius.
	sim.pop.SetPosition(0, agent.Position{X: 2, Y: 5})
	sim.pop.SetPosition(1, agent.Position{X: 4, Y: 5})

	snap, err := sim.Step(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.Exposed, "distancing scaled the contact radius below the pair distance")
}

func TestApportion(t *testing.T) {
	counts := apportion(map[string]float64{"susceptible": 0.99, "infectious": 0.01}, 100)
	assert.Equal(t, 99, counts[agent.Susceptible])
	assert.Equal(t, 1, counts[agent.Infectious])

	counts = apportion(map[string]float64{"susceptible": 0.5, "exposed": 0.25, "infectious": 0.25}, 10)
	assert.Equal(t, 5, counts[agent.Susceptible])
	assert.Equal(t, 10, counts[agent.Susceptible]+counts[agent.Exposed]+counts[agent.Infectious])

	// Fractions that do not divide evenly still sum to n.
	counts = apportion(map[string]float64{"susceptible": 1.0 / 3, "exposed": 1.0 / 3, "infectious": 1.0 / 3}, 10)
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 10, total)
}

func TestRun_VariantsEmerge(t *testing.T) {
	s := gridScenario()
	s.Disease.Variants = config.Variants{Enabled: true, GenomeBits: 8, MutationProb: 0.2}
	s.Disease.TransmissionProb = 0.6

	sim, err := New(s)
	require.NoError(t, err)
	series, _, err := sim.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(sim.Variants()), 1)
	for _, snap := range series {
		carriers := 0
		for _, c := range snap.Variants {
			carriers += c
		}
		assert.Equal(t, snap.Exposed+snap.Infectious, carriers,
			"variant carrier counts must match active infections at tick %d", snap.Tick)
	}
}

func TestQueries_ReturnCopies(t *testing.T) {
	sim, err := New(gridScenario())
	require.NoError(t, err)

	agents := sim.Agents()
	agents[0].State = agent.Dead
	assert.NotEqual(t, agent.Dead, sim.Agents()[0].State, "query surface must not expose mutable references")

	series := sim.Series()
	require.NotEmpty(t, series)
	series[0].Susceptible = -1
	assert.NotEqual(t, -1, sim.Series()[0].Susceptible)
}
