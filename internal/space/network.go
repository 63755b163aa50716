package space

import (
	"fmt"
	"slices"
	"sync"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/owenfs/contagion/internal/agent"
	"github.com/owenfs/contagion/internal/entropy"
)

// Network is a static contact topology: agent i is graph node i and
// contacts are graph-adjacent agents. The adjacency is flattened into
// sorted slices at construction for cheap per-tick queries; the
// topology never changes, so Rebuild is a no-op.
type Network struct {
	n         int
	adjacency [][]agent.ID
	pairs     []Pair
}

// NewNetworkFromGraph flattens an undirected gonum graph over nodes
// 0..n-1 into a Network.
func NewNetworkFromGraph(n int, g *simple.UndirectedGraph) *Network {
	net := &Network{n: n, adjacency: make([][]agent.ID, n)}
	for i := 0; i < n; i++ {
		it := g.From(int64(i))
		for it.Next() {
			net.adjacency[i] = append(net.adjacency[i], agent.ID(it.Node().ID()))
		}
		slices.Sort(net.adjacency[i])
	}
	for i := 0; i < n; i++ {
		for _, j := range net.adjacency[i] {
			if j > agent.ID(i) {
				net.pairs = append(net.pairs, Pair{A: agent.ID(i), B: j})
			}
		}
	}
	return net
}

// NewRandomNetwork builds an Erdős–Rényi contact graph where each of
// the n·(n-1)/2 possible edges exists with probability
// avgDegree / (n-1). Draws come from the contact stream.
func NewRandomNetwork(n int, avgDegree float64, stream *entropy.Stream) *Network {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	p := 0.0
	if n > 1 {
		p = avgDegree / float64(n-1)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if stream.Float64() < p {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
			}
		}
	}
	return NewNetworkFromGraph(n, g)
}

// NewSmallWorldNetwork builds a Watts–Strogatz ring lattice of degree k
// with each clockwise edge rewired with the given probability.
func NewSmallWorldNetwork(n, k int, rewireProb float64, stream *entropy.Stream) *Network {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for j := 1; j <= k/2; j++ {
			g.SetEdge(g.NewEdge(simple.Node(i), simple.Node((i+j)%n)))
		}
	}
	for i := 0; i < n; i++ {
		for j := 1; j <= k/2; j++ {
			if stream.Float64() >= rewireProb {
				continue
			}
			oldTarget := (i + j) % n
			// Pick a fresh target that neither self-loops nor duplicates.
			var target int
			for attempts := 0; attempts < n; attempts++ {
				target = stream.IntN(n)
				if target != i && !g.HasEdgeBetween(int64(i), int64(target)) {
					g.RemoveEdge(int64(i), int64(oldTarget))
					g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(target)))
					break
				}
			}
		}
	}
	return NewNetworkFromGraph(n, g)
}

// NewNetworkFromEdges builds a Network from an explicit edge list.
// Edges referencing nodes outside 0..n-1 are rejected.
func NewNetworkFromEdges(n int, edges [][2]int) (*Network, error) {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for _, e := range edges {
		if e[0] < 0 || e[0] >= n || e[1] < 0 || e[1] >= n {
			return nil, fmt.Errorf("edge (%d, %d) references node outside 0..%d", e[0], e[1], n-1)
		}
		if e[0] == e[1] {
			return nil, fmt.Errorf("self-loop on node %d", e[0])
		}
		g.SetEdge(g.NewEdge(simple.Node(e[0]), simple.Node(e[1])))
	}
	return NewNetworkFromGraph(n, g), nil
}

// Rebuild is a no-op: network topology is static.
func (net *Network) Rebuild(pop *agent.Population) error { return nil }

// Pairs returns the static edge list filtered to queryable endpoints.
// The base list is presorted; with workers > 1 it is filtered in
// contiguous stripes and concatenated in stripe order.
func (net *Network) Pairs(pop *agent.Population, workers int) []Pair {
	keep := func(p Pair) bool {
		return pop.InContactQueries(p.A) && pop.InContactQueries(p.B)
	}
	if workers < 2 || len(net.pairs) < workers {
		var out []Pair
		for _, p := range net.pairs {
			if keep(p) {
				out = append(out, p)
			}
		}
		return out
	}

	stripes := make([][]Pair, workers)
	var wg sync.WaitGroup
	per := (len(net.pairs) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * per
		hi := min(lo+per, len(net.pairs))
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			for _, p := range net.pairs[lo:hi] {
				if keep(p) {
					stripes[w] = append(stripes[w], p)
				}
			}
		}(w, lo, hi)
	}
	wg.Wait()

	var out []Pair
	for _, s := range stripes {
		out = append(out, s...)
	}
	return out
}

// ContactsOf returns the queryable graph neighbors of id, ascending.
func (net *Network) ContactsOf(pop *agent.Population, id agent.ID) []agent.ID {
	if !pop.InContactQueries(id) {
		return nil
	}
	var out []agent.ID
	for _, b := range net.adjacency[id] {
		if pop.InContactQueries(b) {
			out = append(out, b)
		}
	}
	return out
}

// Audit verifies every agent has a node in the graph.
func (net *Network) Audit(pop *agent.Population) error {
	if pop.Size() != net.n {
		return &InconsistencyError{AgentID: agent.ID(net.n), Found: 0}
	}
	return nil
}

// Degree returns the number of neighbors of id.
func (net *Network) Degree(id agent.ID) int { return len(net.adjacency[id]) }
