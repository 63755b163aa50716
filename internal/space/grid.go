package space

import (
	"slices"
	"sync"

	"github.com/owenfs/contagion/internal/agent"
)

type cellKey struct {
	cx int
	cy int
}

// Grid is a uniform-cell spatial index for radius queries. Cell size
// equals the base contact radius, so a 3×3 neighborhood scan covers
// every candidate. The effective query radius may be scaled down by a
// distancing policy but never above the base radius.
type Grid struct {
	width  float64
	height float64
	radius float64

	queryRadius float64
	cells       map[cellKey][]agent.ID
}

// NewGrid creates a grid index over a width×height area with the given
// base contact radius.
func NewGrid(width, height, radius float64) *Grid {
	return &Grid{
		width:       width,
		height:      height,
		radius:      radius,
		queryRadius: radius,
		cells:       make(map[cellKey][]agent.ID),
	}
}

// Bounds returns the area dimensions.
func (g *Grid) Bounds() (w, h float64) { return g.width, g.height }

// SetQueryRadius scales the effective contact radius for the current
// tick. Values above the base radius are capped: the cell structure
// only guarantees completeness up to one cell size.
func (g *Grid) SetQueryRadius(r float64) {
	if r > g.radius {
		r = g.radius
	}
	if r < 0 {
		r = 0
	}
	g.queryRadius = r
}

func (g *Grid) keyFor(p agent.Position) cellKey {
	return cellKey{cx: int(p.X / g.radius), cy: int(p.Y / g.radius)}
}

// Rebuild re-bins every queryable agent into its cell. Binning iterates
// the arena in ID order, so each cell's member list is ascending.
func (g *Grid) Rebuild(pop *agent.Population) error {
	clear(g.cells)
	for i := 0; i < pop.Size(); i++ {
		id := agent.ID(i)
		if !pop.InContactQueries(id) {
			continue
		}
		k := g.keyFor(pop.Get(id).Position)
		g.cells[k] = append(g.cells[k], id)
	}
	return nil
}

func (g *Grid) sortedKeys() []cellKey {
	keys := make([]cellKey, 0, len(g.cells))
	for k := range g.cells {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b cellKey) int {
		if a.cx != b.cx {
			return a.cx - b.cx
		}
		return a.cy - b.cy
	})
	return keys
}

func (g *Grid) withinRange(pop *agent.Population, a, b agent.ID) bool {
	pa := pop.Get(a).Position
	pb := pop.Get(b).Position
	dx := pa.X - pb.X
	dy := pa.Y - pb.Y
	return dx*dx+dy*dy <= g.queryRadius*g.queryRadius
}

// pairsForCell emits every pair whose lower-ID member lives in the
// given cell. The symmetric neighborhood scan sees each unordered pair
// from both sides; keeping only B > A dedupes it to exactly one
// emission, owned by A's cell.
func (g *Grid) pairsForCell(pop *agent.Population, k cellKey, out *[]Pair) {
	for _, a := range g.cells[k] {
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				nk := cellKey{cx: k.cx + dx, cy: k.cy + dy}
				for _, b := range g.cells[nk] {
					if b <= a {
						continue
					}
					if g.withinRange(pop, a, b) {
						*out = append(*out, Pair{A: a, B: b})
					}
				}
			}
		}
	}
}

// Pairs enumerates contact pairs cell by cell in sorted key order.
// With workers > 1 the sorted key range is split into contiguous
// stripes evaluated concurrently; stripe outputs are concatenated in
// stripe order, which reproduces the sequential ordering exactly.
func (g *Grid) Pairs(pop *agent.Population, workers int) []Pair {
	keys := g.sortedKeys()
	if workers < 2 || len(keys) < workers {
		var out []Pair
		for _, k := range keys {
			g.pairsForCell(pop, k, &out)
		}
		return out
	}

	stripes := make([][]Pair, workers)
	var wg sync.WaitGroup
	per := (len(keys) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * per
		hi := min(lo+per, len(keys))
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			for _, k := range keys[lo:hi] {
				g.pairsForCell(pop, k, &stripes[w])
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

// ContactsOf returns every queryable agent within the effective radius
// of id, ascending, excluding id itself.
func (g *Grid) ContactsOf(pop *agent.Population, id agent.ID) []agent.ID {
	if !pop.InContactQueries(id) {
		return nil
	}
	k := g.keyFor(pop.Get(id).Position)
	var out []agent.ID
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			nk := cellKey{cx: k.cx + dx, cy: k.cy + dy}
			for _, b := range g.cells[nk] {
				if b == id {
					continue
				}
				if g.withinRange(pop, id, b) {
					out = append(out, b)
				}
			}
		}
	}
	slices.Sort(out)
	return out
}

// Audit verifies that every queryable agent occupies exactly one cell
// and removed agents occupy none.
func (g *Grid) Audit(pop *agent.Population) error {
	seen := make(map[agent.ID]int)
	for _, members := range g.cells {
		for _, id := range members {
			seen[id]++
		}
	}
	for i := 0; i < pop.Size(); i++ {
		id := agent.ID(i)
		want := 0
		if pop.InContactQueries(id) {
			want = 1
		}
		if seen[id] != want {
			return &InconsistencyError{AgentID: id, Found: seen[id]}
		}
	}
	return nil
}
