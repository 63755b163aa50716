package engine

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/owenfs/contagion/internal/agent"
	"github.com/owenfs/contagion/internal/config"
	"github.com/owenfs/contagion/internal/entropy"
)

// Movement advances agent positions at the start of a tick. Strategies
// iterate the arena in ascending ID order so any draws they consume
// from the movement stream land in a fixed sequence.
type Movement interface {
	Move(pop *agent.Population, tick uint64, stream *entropy.Stream)
}

// Stationary leaves every agent in place. The only strategy valid in
// network mode.
type Stationary struct{}

// Move implements Movement.
func (Stationary) Move(*agent.Population, uint64, *entropy.Stream) {}

// RandomWalk jitters each live agent by a uniform step in each axis,
// clamped to the area bounds.
type RandomWalk struct {
	Step   float64
	Width  float64
	Height float64
}

// Move implements Movement. Two draws per queryable agent.
func (m RandomWalk) Move(pop *agent.Population, _ uint64, stream *entropy.Stream) {
	for i := 0; i < pop.Size(); i++ {
		id := agent.ID(i)
		if !pop.InContactQueries(id) {
			continue
		}
		p := pop.Get(id).Position
		p.X = clamp(p.X+(stream.Float64()*2-1)*m.Step, m.Width)
		p.Y = clamp(p.Y+(stream.Float64()*2-1)*m.Step, m.Height)
		pop.SetPosition(id, p)
	}
}

// NoiseDrift moves agents along a smooth time-varying flow field
// sampled from OpenSimplex noise. Fully deterministic given the seed;
// consumes no stream draws.
type NoiseDrift struct {
	noise  opensimplex.Noise
	scale  float64
	step   float64
	width  float64
	height float64
}

// NewNoiseDrift builds a drift field from the given seed.
func NewNoiseDrift(seed int64, scale, step, width, height float64) *NoiseDrift {
	if scale <= 0 {
		scale = 0.05
	}
	return &NoiseDrift{
		noise:  opensimplex.NewNormalized(seed),
		scale:  scale,
		step:   step,
		width:  width,
		height: height,
	}
}

// Move implements Movement.
func (m *NoiseDrift) Move(pop *agent.Population, tick uint64, _ *entropy.Stream) {
	t := float64(tick) * 0.01
	for i := 0; i < pop.Size(); i++ {
		id := agent.ID(i)
		if !pop.InContactQueries(id) {
			continue
		}
		p := pop.Get(id).Position
		angle := 2 * math.Pi * m.noise.Eval3(p.X*m.scale, p.Y*m.scale, t)
		p.X = clamp(p.X+math.Cos(angle)*m.step, m.width)
		p.Y = clamp(p.Y+math.Sin(angle)*m.step, m.height)
		pop.SetPosition(id, p)
	}
}

// clamp keeps a coordinate inside [0, limit).
func clamp(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v >= limit {
		return math.Nextafter(limit, 0)
	}
	return v
}

// newMovement builds the configured strategy.
func newMovement(s config.Scenario) Movement {
	switch s.Movement.Strategy {
	case config.MovementRandomWalk:
		return RandomWalk{Step: s.Movement.StepSize, Width: s.Spatial.Width, Height: s.Spatial.Height}
	case config.MovementNoiseDrift:
		return NewNoiseDrift(s.Seed, s.Movement.NoiseScale, s.Movement.StepSize, s.Spatial.Width, s.Spatial.Height)
	default:
		return Stationary{}
	}
}
