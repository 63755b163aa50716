// Package space resolves "who is in contact with whom" each tick.
// Grid mode bins agent positions into a uniform cell grid rebuilt per
// tick; network mode uses a static contact graph. Both enumerate each
// unordered pair exactly once, in a fixed order, so the transmission
// stream's draws are reproducible.
package space

import (
	"fmt"

	"github.com/owenfs/contagion/internal/agent"
)

// Pair is an unordered contact pair, normalized A < B.
type Pair struct {
	A agent.ID
	B agent.ID
}

// Index answers contact queries over the current population layout.
type Index interface {
	// Rebuild reconstructs the index from current positions. Grid mode
	// re-bins every tick; network mode is a no-op.
	Rebuild(pop *agent.Population) error

	// Pairs enumerates every unordered contact pair exactly once, in a
	// deterministic order independent of the worker count.
	Pairs(pop *agent.Population, workers int) []Pair

	// ContactsOf returns the agents in contact range of id, excluding
	// id itself.
	ContactsOf(pop *agent.Population, id agent.ID) []agent.ID

	// Audit verifies the structural invariant that every queryable
	// agent appears in exactly one cell or node.
	Audit(pop *agent.Population) error
}

// InconsistencyError reports an agent found in zero or multiple
// cells/nodes after a rebuild. It is a structural invariant failure and
// is never repaired in place.
type InconsistencyError struct {
	AgentID agent.ID
	Found   int
}

// Error implements the error interface.
func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("spatial index inconsistency: agent %d present in %d cells", e.AgentID, e.Found)
}
