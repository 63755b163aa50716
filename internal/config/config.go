// Package config defines the scenario description consumed by the
// engine bootstrap: population, topology, disease parameters, policy
// schedule, and the master seed. Scenarios load from YAML and validate
// before any tick executes.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Spatial modes.
const (
	ModeGrid    = "grid"
	ModeNetwork = "network"
)

// Network topologies.
const (
	TopologyErdosRenyi = "erdos-renyi"
	TopologySmallWorld = "small-world"
	TopologyEdges      = "edges"
)

// Movement strategies.
const (
	MovementStationary = "stationary"
	MovementRandomWalk = "random-walk"
	MovementNoiseDrift = "noise-drift"
)

// fractionTolerance is how far initial state fractions may drift from
// summing to exactly 1.
const fractionTolerance = 1e-6

// Scenario is the complete initialization input for one run.
type Scenario struct {
	Name     string `yaml:"name"`
	Seed     int64  `yaml:"seed"`
	N        int    `yaml:"n"`
	MaxTicks uint64 `yaml:"max_ticks"`

	// InitialStates maps compartment name to population fraction.
	// Fractions must sum to 1 within tolerance.
	InitialStates map[string]float64 `yaml:"initial_states"`

	Spatial      Spatial      `yaml:"spatial"`
	Disease      Disease      `yaml:"disease"`
	Movement     Movement     `yaml:"movement"`
	Policies     []Policy     `yaml:"policies"`

	// RemovalOnDeath excludes dead agents from contact queries.
	RemovalOnDeath bool `yaml:"removal_on_death"`

	// RecordEvents keeps the per-transition event log in metrics.
	RecordEvents bool `yaml:"record_events"`

	// Workers bounds data-parallel contact evaluation. Zero or one
	// means sequential; results are identical either way.
	Workers int `yaml:"workers"`
}

// Spatial selects and parameterizes the contact structure.
type Spatial struct {
	Mode string `yaml:"mode"`

	// Grid mode.
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Radius float64 `yaml:"radius"`

	// Network mode.
	Topology    string   `yaml:"topology"`
	AvgDegree   float64  `yaml:"avg_degree"`
	SmallWorldK int      `yaml:"small_world_k"`
	RewireProb  float64  `yaml:"rewire_prob"`
	Edges       [][2]int `yaml:"edges"`
}

// Disease holds the transmission and progression parameters.
type Disease struct {
	// TransmissionProb is the base per-contact infection probability.
	TransmissionProb float64 `yaml:"transmission_prob"`

	// FatalityProb is the probability the infectious dwell ends in
	// death rather than recovery.
	FatalityProb float64 `yaml:"fatality_prob"`

	// InfectionThreshold optionally ends the run once the infectious
	// fraction reaches it. Zero disables the check.
	InfectionThreshold float64 `yaml:"infection_threshold"`

	// Dwell distributions for Exposed and Infectious.
	ExposedDuration    Duration `yaml:"exposed_duration"`
	InfectiousDuration Duration `yaml:"infectious_duration"`

	Variants Variants `yaml:"variants"`
}

// Duration describes a dwell-time distribution.
type Duration struct {
	Dist  string  `yaml:"dist"` // fixed | uniform | lognormal
	Value uint64  `yaml:"value"`
	Min   uint64  `yaml:"min"`
	Max   uint64  `yaml:"max"`
	Mu    float64 `yaml:"mu"`
	Sigma float64 `yaml:"sigma"`
}

// Variants configures pathogen mutation.
type Variants struct {
	Enabled      bool    `yaml:"enabled"`
	GenomeBits   int     `yaml:"genome_bits"`
	MutationProb float64 `yaml:"mutation_prob"`
}

// Movement configures the per-tick movement strategy (grid mode only).
type Movement struct {
	Strategy   string  `yaml:"strategy"`
	StepSize   float64 `yaml:"step_size"`
	NoiseScale float64 `yaml:"noise_scale"`
}

// Policy is one scheduled intervention. Factor fields are pointers so
// an explicit 0 (full block) is distinct from an omitted field (no
// effect, factor 1).
type Policy struct {
	Name      string `yaml:"name"`
	StartTick uint64 `yaml:"start_tick"`
	EndTick   uint64 `yaml:"end_tick"` // zero means never ends

	// TransmissionFactor scales infection probability (masking).
	TransmissionFactor *float64 `yaml:"transmission_factor"`

	// ContactFactor scales the grid contact radius (distancing).
	ContactFactor *float64 `yaml:"contact_factor"`

	// VaccinationProb moves each Susceptible agent to Recovered with
	// this per-tick probability while the policy is active.
	VaccinationProb float64 `yaml:"vaccination_prob"`

	// QuarantineFraction flags agents entering Infectious as
	// quarantined with this probability while active.
	QuarantineFraction float64 `yaml:"quarantine_fraction"`

	// QuarantineFactor scales transmission from quarantined agents.
	QuarantineFactor *float64 `yaml:"quarantine_factor"`
}

// Factor dereferences an optional factor, defaulting to 1.
func Factor(f *float64) float64 {
	if f == nil {
		return 1
	}
	return *f
}

// Default returns a runnable baseline scenario: a random contact
// network seeded with one infectious agent, matching the reference
// parameterization of the network outbreak model.
func Default() Scenario {
	return Scenario{
		Name:     "baseline",
		Seed:     42,
		N:        500,
		MaxTicks: 1500,
		InitialStates: map[string]float64{
			"susceptible": 0.998,
			"infectious":  0.002,
		},
		Spatial: Spatial{
			Mode:      ModeNetwork,
			Topology:  TopologyErdosRenyi,
			AvgDegree: 10,
		},
		Disease: Disease{
			TransmissionProb:   0.1,
			FatalityProb:       0.02,
			ExposedDuration:    Duration{Dist: "fixed", Value: 3},
			InfectiousDuration: Duration{Dist: "lognormal", Mu: 1.8, Sigma: 0.4},
			Variants: Variants{
				Enabled:      true,
				GenomeBits:   8,
				MutationProb: 0.001,
			},
		},
		Movement: Movement{Strategy: MovementStationary},
		Workers:  1,
	}
}

// Load reads and validates a scenario from a YAML file.
func Load(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	s := Default()
	// A user-provided map must replace the default fractions, not merge
	// into them.
	defaults := s.InitialStates
	s.InitialStates = nil
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if s.InitialStates == nil {
		s.InitialStates = defaults
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// ValidationError reports a malformed or out-of-range scenario field.
// Validation fails fast: no simulation state exists when it returns.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func validProb(p float64) bool { return p >= 0 && p <= 1 }

// Validate checks the scenario against the initialization contract.
func (s *Scenario) Validate() error {
	if s.N <= 0 {
		return invalid("n", "population size must be positive, got %d", s.N)
	}
	if s.MaxTicks == 0 {
		return invalid("max_ticks", "must be positive")
	}

	total := 0.0
	for name, frac := range s.InitialStates {
		if _, ok := parseableStates[name]; !ok {
			return invalid("initial_states", "unknown state %q", name)
		}
		if frac < 0 || frac > 1 {
			return invalid("initial_states", "fraction for %q outside [0,1]: %f", name, frac)
		}
		total += frac
	}
	if math.Abs(total-1) > fractionTolerance {
		return invalid("initial_states", "fractions sum to %f, want 1", total)
	}

	switch s.Spatial.Mode {
	case ModeGrid:
		if s.Spatial.Width <= 0 || s.Spatial.Height <= 0 {
			return invalid("spatial", "grid dimensions must be positive")
		}
		if s.Spatial.Radius <= 0 {
			return invalid("spatial.radius", "contact radius must be positive")
		}
	case ModeNetwork:
		switch s.Spatial.Topology {
		case TopologyErdosRenyi:
			if s.Spatial.AvgDegree <= 0 {
				return invalid("spatial.avg_degree", "must be positive")
			}
		case TopologySmallWorld:
			if s.Spatial.SmallWorldK < 2 || s.Spatial.SmallWorldK >= s.N {
				return invalid("spatial.small_world_k", "need 2 <= k < n")
			}
			if !validProb(s.Spatial.RewireProb) {
				return invalid("spatial.rewire_prob", "outside [0,1]")
			}
		case TopologyEdges:
			if len(s.Spatial.Edges) == 0 {
				return invalid("spatial.edges", "edge list is empty")
			}
		default:
			return invalid("spatial.topology", "unknown topology %q", s.Spatial.Topology)
		}
	default:
		return invalid("spatial.mode", "unknown mode %q", s.Spatial.Mode)
	}

	if !validProb(s.Disease.TransmissionProb) {
		return invalid("disease.transmission_prob", "outside [0,1]: %f", s.Disease.TransmissionProb)
	}
	if !validProb(s.Disease.FatalityProb) {
		return invalid("disease.fatality_prob", "outside [0,1]: %f", s.Disease.FatalityProb)
	}
	if !validProb(s.Disease.InfectionThreshold) {
		return invalid("disease.infection_threshold", "outside [0,1]: %f", s.Disease.InfectionThreshold)
	}
	if err := validateDuration("disease.exposed_duration", s.Disease.ExposedDuration); err != nil {
		return err
	}
	if err := validateDuration("disease.infectious_duration", s.Disease.InfectiousDuration); err != nil {
		return err
	}

	if s.Disease.Variants.Enabled {
		if s.Disease.Variants.GenomeBits < 1 || s.Disease.Variants.GenomeBits > 32 {
			return invalid("disease.variants.genome_bits", "need 1..32, got %d", s.Disease.Variants.GenomeBits)
		}
		if !validProb(s.Disease.Variants.MutationProb) {
			return invalid("disease.variants.mutation_prob", "outside [0,1]")
		}
	}

	switch s.Movement.Strategy {
	case MovementStationary:
	case MovementRandomWalk, MovementNoiseDrift:
		if s.Spatial.Mode != ModeGrid {
			return invalid("movement.strategy", "%q requires grid mode", s.Movement.Strategy)
		}
		if s.Movement.StepSize <= 0 {
			return invalid("movement.step_size", "must be positive")
		}
	default:
		return invalid("movement.strategy", "unknown strategy %q", s.Movement.Strategy)
	}

	for i, p := range s.Policies {
		field := fmt.Sprintf("policies[%d]", i)
		if p.EndTick != 0 && p.EndTick < p.StartTick {
			return invalid(field, "end_tick before start_tick")
		}
		for name, f := range map[string]*float64{
			"transmission_factor": p.TransmissionFactor,
			"contact_factor":      p.ContactFactor,
			"quarantine_factor":   p.QuarantineFactor,
		} {
			if f != nil && !validProb(*f) {
				return invalid(field+"."+name, "outside [0,1]: %f", *f)
			}
		}
		for name, f := range map[string]float64{
			"vaccination_prob":    p.VaccinationProb,
			"quarantine_fraction": p.QuarantineFraction,
		} {
			if !validProb(f) {
				return invalid(field+"."+name, "outside [0,1]: %f", f)
			}
		}
	}

	if s.Workers < 0 {
		return invalid("workers", "must be >= 0")
	}
	return nil
}

func validateDuration(field string, d Duration) error {
	switch d.Dist {
	case "fixed":
		if d.Value < 1 {
			return invalid(field, "fixed duration must be >= 1")
		}
	case "uniform":
		if d.Min < 1 || d.Max < d.Min {
			return invalid(field, "uniform duration needs 1 <= min <= max")
		}
	case "lognormal":
		if d.Sigma < 0 {
			return invalid(field, "lognormal sigma must be >= 0")
		}
	default:
		return invalid(field, "unknown distribution %q", d.Dist)
	}
	return nil
}

// parseableStates mirrors the compartment names without importing the
// agent package; config stays a leaf.
var parseableStates = map[string]struct{}{
	"susceptible": {},
	"exposed":     {},
	"infectious":  {},
	"recovered":   {},
	"dead":        {},
}
