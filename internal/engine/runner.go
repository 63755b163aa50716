package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner paces a simulation in wall-clock time for live observation.
// Speed 1.0 advances one tick per interval; 0 pauses; higher values
// step proportionally faster. As-fast-as-possible batch execution goes
// through Simulation.Run instead.
type Runner struct {
	sim      *Simulation
	interval time.Duration
	maxTicks uint64

	// mu guards speed and stopped; SetSpeed and Stop are called from
	// API handler goroutines while Run is looping.
	mu      sync.Mutex
	speed   float64
	stopCh  chan struct{}
	stopped bool
}

// NewRunner creates a paced runner with the given base tick interval.
func NewRunner(sim *Simulation, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{
		sim:      sim,
		interval: interval,
		maxTicks: sim.Scenario().MaxTicks,
		speed:    1,
		stopCh:   make(chan struct{}),
	}
}

// SetSpeed adjusts the pacing multiplier. Zero pauses the loop.
func (r *Runner) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	r.mu.Lock()
	r.speed = speed
	r.mu.Unlock()
}

// Speed returns the current pacing multiplier.
func (r *Runner) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}

// Stop requests a halt. The in-flight tick completes first. Safe to
// call more than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.stopped = true
		close(r.stopCh)
	}
}

// Run drives the loop until termination, Stop, or context
// cancellation. Blocks.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("runner started", "interval", r.interval, "speed", r.Speed())

	for {
		select {
		case <-ctx.Done():
			slog.Info("runner stopped by context", "tick", r.sim.Tick())
			return
		case <-r.stopCh:
			slog.Info("runner stopped", "tick", r.sim.Tick())
			return
		default:
		}

		speed := r.Speed()
		if speed <= 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		r.sim.mu.Lock()
		reason, done := r.sim.terminal(r.maxTicks)
		if done {
			r.sim.stopped = reason
			r.sim.mu.Unlock()
			slog.Info("runner finished", "reason", reason, "tick", r.sim.Tick())
			return
		}

		start := time.Now()
		snap, err := r.sim.step(context.Background())
		r.sim.mu.Unlock()
		if err != nil {
			slog.Error("tick failed", "error", err)
			return
		}

		if snap.Tick%100 == 0 {
			slog.Info("tick",
				"tick", snap.Tick,
				"susceptible", snap.Susceptible,
				"exposed", snap.Exposed,
				"infectious", snap.Infectious,
				"recovered", snap.Recovered,
				"dead", snap.Dead,
			)
		}

		elapsed := time.Since(start)
		target := time.Duration(float64(r.interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}
}
