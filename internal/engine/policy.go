package engine

import "github.com/owenfs/contagion/internal/config"

// PolicySet evaluates the scheduled interventions for a tick. Policies
// are stateless modifiers: they scale contact radius and transmission
// probability, vaccinate susceptibles, and quarantine new infectious
// agents, but never touch recorded metrics or the compartment graph.
type PolicySet struct {
	policies []config.Policy
}

// NewPolicySet wraps a validated policy schedule.
func NewPolicySet(policies []config.Policy) *PolicySet {
	return &PolicySet{policies: policies}
}

func (ps *PolicySet) active(tick uint64) []config.Policy {
	var out []config.Policy
	for _, p := range ps.policies {
		if tick < p.StartTick {
			continue
		}
		if p.EndTick != 0 && tick > p.EndTick {
			continue
		}
		out = append(out, p)
	}
	return out
}

// TransmissionFactor returns the combined multiplicative modifier on
// infection probability for a transmission whose source has the given
// quarantine status.
func (ps *PolicySet) TransmissionFactor(tick uint64, sourceQuarantined bool) float64 {
	m := 1.0
	for _, p := range ps.active(tick) {
		m *= config.Factor(p.TransmissionFactor)
		if sourceQuarantined {
			m *= config.Factor(p.QuarantineFactor)
		}
	}
	return m
}

// ContactFactor returns the combined multiplicative modifier on the
// grid contact radius.
func (ps *PolicySet) ContactFactor(tick uint64) float64 {
	m := 1.0
	for _, p := range ps.active(tick) {
		m *= config.Factor(p.ContactFactor)
	}
	return m
}

// VaccinationProb returns the per-tick probability that a susceptible
// agent is vaccinated, combining overlapping policies as independent
// trials.
func (ps *PolicySet) VaccinationProb(tick uint64) float64 {
	miss := 1.0
	for _, p := range ps.active(tick) {
		miss *= 1 - p.VaccinationProb
	}
	return 1 - miss
}

// QuarantineFraction returns the probability an agent entering
// Infectious this tick is flagged quarantined.
func (ps *PolicySet) QuarantineFraction(tick uint64) float64 {
	miss := 1.0
	for _, p := range ps.active(tick) {
		miss *= 1 - p.QuarantineFraction
	}
	return 1 - miss
}
