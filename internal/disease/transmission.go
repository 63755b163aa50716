package disease

import (
	"github.com/owenfs/contagion/internal/agent"
	"github.com/owenfs/contagion/internal/entropy"
)

// Transmission computes whether contact between an infectious and a
// susceptible agent produces an exposure. It consumes exactly one draw
// from the transmission stream per eligible pair per tick, success or
// not, so the draw sequence is a pure function of the eligible pair
// sequence.
type Transmission struct {
	registry  *Registry
	stream    *entropy.Stream
	mutStream *entropy.Stream
}

// NewTransmission wires the variant registry and the transmission and
// mutation streams.
func NewTransmission(registry *Registry, stream, mutStream *entropy.Stream) *Transmission {
	return &Transmission{registry: registry, stream: stream, mutStream: mutStream}
}

// Eligible reports whether exactly one of the pair is Infectious and
// the other Susceptible. Ineligible pairs consume no draw.
func Eligible(a, b agent.Agent) bool {
	return (a.State == agent.Infectious && b.State == agent.Susceptible) ||
		(a.State == agent.Susceptible && b.State == agent.Infectious)
}

// Attempt performs one Bernoulli trial for an eligible (source, target)
// pair. modifier is the multiplicative policy factor in [0, 1] already
// combining distancing, masking, and the source's quarantine status.
func (t *Transmission) Attempt(source agent.Agent, modifier float64) bool {
	p := t.registry.Get(source.Strain).Infectivity * modifier
	return t.stream.Float64() < p
}

// Inherit derives the strain a fresh exposure carries from the source's
// strain, applying mutation. Called only for exposures that are
// actually recorded, so mutation draws track the recorded event order.
func (t *Transmission) Inherit(source agent.Agent, tick uint64) uint32 {
	return t.registry.Mutate(source.Strain, tick, t.mutStream)
}
