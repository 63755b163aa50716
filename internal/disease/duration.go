// Package disease encodes the stochastic health-state machine: dwell
// duration sampling, the transmission model, and the variant registry.
package disease

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/owenfs/contagion/internal/entropy"
)

// DurationKind selects the dwell-time distribution family.
type DurationKind string

const (
	DurationFixed     DurationKind = "fixed"
	DurationUniform   DurationKind = "uniform"
	DurationLogNormal DurationKind = "lognormal"
)

// DurationDist describes how dwell times for one compartment are drawn.
// Samples are whole ticks, never less than 1.
type DurationDist struct {
	Kind DurationKind

	// Fixed.
	Value uint64

	// Uniform, inclusive bounds.
	Min uint64
	Max uint64

	// LogNormal parameters of the underlying normal.
	Mu    float64
	Sigma float64
}

// Validate reports a malformed distribution.
func (d DurationDist) Validate() error {
	switch d.Kind {
	case DurationFixed:
		if d.Value < 1 {
			return fmt.Errorf("fixed duration must be >= 1, got %d", d.Value)
		}
	case DurationUniform:
		if d.Min < 1 || d.Max < d.Min {
			return fmt.Errorf("uniform duration needs 1 <= min <= max, got [%d, %d]", d.Min, d.Max)
		}
	case DurationLogNormal:
		if d.Sigma < 0 {
			return fmt.Errorf("lognormal sigma must be >= 0, got %f", d.Sigma)
		}
	default:
		return fmt.Errorf("unknown duration kind %q", d.Kind)
	}
	return nil
}

// Sample draws one dwell time from the duration stream. Fixed
// distributions consume no draws; uniform and lognormal consume
// whatever their sampler needs, which is fine because the stream is
// dedicated to duration sampling.
func (d DurationDist) Sample(stream *entropy.Stream) uint64 {
	switch d.Kind {
	case DurationFixed:
		return d.Value
	case DurationUniform:
		span := int(d.Max-d.Min) + 1
		return d.Min + uint64(stream.IntN(span))
	case DurationLogNormal:
		ln := distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma, Src: stream.Source()}
		v := math.Round(ln.Rand())
		if v < 1 {
			return 1
		}
		return uint64(v)
	default:
		return 1
	}
}

// FixedDuration is a convenience constructor.
func FixedDuration(ticks uint64) DurationDist {
	return DurationDist{Kind: DurationFixed, Value: ticks}
}
