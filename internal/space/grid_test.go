package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owenfs/contagion/internal/agent"
)

func gridPop(positions []agent.Position) *agent.Population {
	p := agent.NewPopulation(len(positions), false)
	for i, pos := range positions {
		p.SetPosition(agent.ID(i), pos)
	}
	return p
}

func TestGrid_PairsWithinRadius(t *testing.T) {
	pop := gridPop([]agent.Position{
		{X: 1, Y: 1},
		{X: 1.5, Y: 1}, // 0.5 from agent 0
		{X: 9, Y: 9},   // far from both
	})
	g := NewGrid(10, 10, 1.0)
	require.NoError(t, g.Rebuild(pop))

	pairs := g.Pairs(pop, 1)
	assert.Equal(t, []Pair{{A: 0, B: 1}}, pairs)
}

func TestGrid_ContactsSymmetricAndSelfExcluding(t *testing.T) {
	pop := gridPop([]agent.Position{
		{X: 5, Y: 5},
		{X: 5.5, Y: 5},
		{X: 5, Y: 5.5},
	})
	g := NewGrid(10, 10, 1.0)
	require.NoError(t, g.Rebuild(pop))

	for i := 0; i < pop.Size(); i++ {
		id := agent.ID(i)
		contacts := g.ContactsOf(pop, id)
		assert.NotContains(t, contacts, id, "agent %d must not be its own contact", i)
		for _, c := range contacts {
			assert.Contains(t, g.ContactsOf(pop, c), id, "symmetry broken for (%d, %d)", id, c)
		}
	}
}

func TestGrid_PairsCrossCellBoundaries(t *testing.T) {
	// Agents in adjacent cells but within radius of each other.
	pop := gridPop([]agent.Position{
		{X: 0.95, Y: 0.5},
		{X: 1.05, Y: 0.5},
	})
	g := NewGrid(10, 10, 1.0)
	require.NoError(t, g.Rebuild(pop))

	assert.Equal(t, []Pair{{A: 0, B: 1}}, g.Pairs(pop, 1))
}

func TestGrid_EachPairOnce(t *testing.T) {
	// A clique of four co-located agents: exactly C(4,2) = 6 pairs.
	pop := gridPop([]agent.Position{
		{X: 2, Y: 2}, {X: 2.1, Y: 2}, {X: 2, Y: 2.1}, {X: 2.1, Y: 2.1},
	})
	g := NewGrid(10, 10, 1.0)
	require.NoError(t, g.Rebuild(pop))

	pairs := g.Pairs(pop, 1)
	require.Len(t, pairs, 6)

	seen := make(map[Pair]bool)
	for _, p := range pairs {
		assert.Less(t, p.A, p.B, "pairs must be normalized A < B")
		assert.False(t, seen[p], "pair %v emitted twice", p)
		seen[p] = true
	}
}

func TestGrid_ParallelPairsMatchSequential(t *testing.T) {
	var positions []agent.Position
	for i := 0; i < 200; i++ {
		positions = append(positions, agent.Position{
			X: float64(i%20) * 0.7,
			Y: float64(i/20) * 0.9,
		})
	}
	pop := gridPop(positions)
	g := NewGrid(20, 20, 1.5)
	require.NoError(t, g.Rebuild(pop))

	sequential := g.Pairs(pop, 1)
	require.NotEmpty(t, sequential)
	for _, workers := range []int{2, 4, 8} {
		assert.Equal(t, sequential, g.Pairs(pop, workers), "workers=%d changed pair order", workers)
	}
}

func TestGrid_QueryRadiusScaling(t *testing.T) {
	pop := gridPop([]agent.Position{
		{X: 1, Y: 1},
		{X: 1.8, Y: 1}, // 0.8 apart
	})
	g := NewGrid(10, 10, 1.0)
	require.NoError(t, g.Rebuild(pop))

	require.Len(t, g.Pairs(pop, 1), 1)

	g.SetQueryRadius(0.5)
	assert.Empty(t, g.Pairs(pop, 1), "distancing-scaled radius drops the contact")

	// Scaling above the base radius is capped.
	g.SetQueryRadius(100)
	assert.Len(t, g.Pairs(pop, 1), 1)
}

func TestGrid_RemovedAgentsExcluded(t *testing.T) {
	pop := agent.NewPopulation(2, true)
	pop.SetPosition(0, agent.Position{X: 1, Y: 1})
	pop.SetPosition(1, agent.Position{X: 1.2, Y: 1})
	require.NoError(t, pop.ApplyTransition(0, agent.Exposed, 1, 1))
	require.NoError(t, pop.ApplyTransition(0, agent.Infectious, 2, 1))
	require.NoError(t, pop.ApplyTransition(0, agent.Dead, 3, 0))

	g := NewGrid(10, 10, 1.0)
	require.NoError(t, g.Rebuild(pop))

	assert.Empty(t, g.Pairs(pop, 1))
	assert.Empty(t, g.ContactsOf(pop, 1))
	assert.NoError(t, g.Audit(pop))
}

func TestGrid_Audit(t *testing.T) {
	pop := gridPop([]agent.Position{{X: 1, Y: 1}, {X: 2, Y: 2}})
	g := NewGrid(10, 10, 1.0)
	require.NoError(t, g.Rebuild(pop))
	assert.NoError(t, g.Audit(pop))

	// An agent moved after rebuild but before audit is still in exactly
	// one (stale) cell: audit passes. Only duplication/absence fails.
	pop.SetPosition(0, agent.Position{X: 9, Y: 9})
	assert.NoError(t, g.Audit(pop))
}

func TestGrid_AuditDetectsMissingAgent(t *testing.T) {
	pop := gridPop([]agent.Position{{X: 1, Y: 1}})
	g := NewGrid(10, 10, 1.0)
	// No rebuild: the agent is in zero cells.
	err := g.Audit(pop)
	require.Error(t, err)

	var ie *InconsistencyError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, agent.ID(0), ie.AgentID)
	assert.Equal(t, 0, ie.Found)
}
