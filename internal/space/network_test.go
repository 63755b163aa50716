package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owenfs/contagion/internal/agent"
	"github.com/owenfs/contagion/internal/entropy"
)

func contactStream(seed int64) *entropy.Stream {
	return entropy.NewManager(seed).Stream(entropy.StreamContact)
}

func TestNetworkFromEdges(t *testing.T) {
	net, err := NewNetworkFromEdges(4, [][2]int{{0, 1}, {1, 2}, {2, 3}})
	require.NoError(t, err)

	pop := agent.NewPopulation(4, false)
	assert.Equal(t, []Pair{{A: 0, B: 1}, {A: 1, B: 2}, {A: 2, B: 3}}, net.Pairs(pop, 1))
	assert.Equal(t, []agent.ID{0, 2}, net.ContactsOf(pop, 1))
	assert.Equal(t, 1, net.Degree(0))
	assert.Equal(t, 2, net.Degree(1))
	assert.NoError(t, net.Audit(pop))
}

func TestNetworkFromEdges_Invalid(t *testing.T) {
	_, err := NewNetworkFromEdges(3, [][2]int{{0, 5}})
	assert.Error(t, err)

	_, err = NewNetworkFromEdges(3, [][2]int{{1, 1}})
	assert.Error(t, err, "self-loops rejected")
}

func TestNetwork_Symmetry(t *testing.T) {
	net := NewRandomNetwork(60, 6, contactStream(3))
	pop := agent.NewPopulation(60, false)

	for i := 0; i < 60; i++ {
		id := agent.ID(i)
		for _, c := range net.ContactsOf(pop, id) {
			assert.Contains(t, net.ContactsOf(pop, c), id, "symmetry broken for (%d, %d)", id, c)
			assert.NotEqual(t, id, c)
		}
	}
}

func TestNetwork_Deterministic(t *testing.T) {
	pop := agent.NewPopulation(40, false)
	a := NewRandomNetwork(40, 5, contactStream(11))
	b := NewRandomNetwork(40, 5, contactStream(11))
	assert.Equal(t, a.Pairs(pop, 1), b.Pairs(pop, 1))
}

func TestNetwork_ParallelPairsMatchSequential(t *testing.T) {
	net := NewRandomNetwork(100, 8, contactStream(7))
	pop := agent.NewPopulation(100, false)

	sequential := net.Pairs(pop, 1)
	require.NotEmpty(t, sequential)
	for _, workers := range []int{2, 4, 8} {
		assert.Equal(t, sequential, net.Pairs(pop, workers))
	}
}

func TestNetwork_RemovedAgentsExcluded(t *testing.T) {
	net, err := NewNetworkFromEdges(3, [][2]int{{0, 1}, {1, 2}})
	require.NoError(t, err)

	pop := agent.NewPopulation(3, true)
	require.NoError(t, pop.ApplyTransition(1, agent.Exposed, 1, 1))
	require.NoError(t, pop.ApplyTransition(1, agent.Infectious, 2, 1))
	require.NoError(t, pop.ApplyTransition(1, agent.Dead, 3, 0))

	assert.Empty(t, net.Pairs(pop, 1))
	assert.Empty(t, net.ContactsOf(pop, 1))
	assert.Empty(t, net.ContactsOf(pop, 0), "contacts through a removed agent drop out")
}

func TestSmallWorldNetwork_Degrees(t *testing.T) {
	// With zero rewiring the ring lattice gives every node degree k.
	net := NewSmallWorldNetwork(20, 4, 0, contactStream(5))
	for i := 0; i < 20; i++ {
		assert.Equal(t, 4, net.Degree(agent.ID(i)), "node %d", i)
	}

	pop := agent.NewPopulation(20, false)
	assert.Len(t, net.Pairs(pop, 1), 40, "k·n/2 edges")
}

func TestNetwork_RebuildNoOp(t *testing.T) {
	net, err := NewNetworkFromEdges(2, [][2]int{{0, 1}})
	require.NoError(t, err)
	pop := agent.NewPopulation(2, false)

	before := net.Pairs(pop, 1)
	require.NoError(t, net.Rebuild(pop))
	assert.Equal(t, before, net.Pairs(pop, 1))
}
