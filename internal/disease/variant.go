package disease

import (
	"fmt"
	"math/bits"

	"github.com/owenfs/contagion/internal/entropy"
)

// Variant is a strain of the pathogen. Its genome is a small bitcode;
// mutations flip bits at transmission time and shift the strain's
// infectivity and fatality away from its parent's.
type Variant struct {
	Code        uint32  `json:"code"`
	Infectivity float64 `json:"infectivity"`
	Fatality    float64 `json:"fatality"`
	FirstTick   uint64  `json:"first_tick"`
}

// Registry tracks every variant observed during a run, keyed by genome
// code. The zero-code root variant carries the configured base
// probabilities. A nil registry behaves as a single fixed strain.
type Registry struct {
	bits         int
	mutationProb float64
	variants     map[uint32]*Variant
	order        []uint32
}

// NewRegistry creates a registry seeded with the root variant.
// bits is the genome width (1..32); mutationProb is the per-bit flip
// probability applied at each successful transmission.
func NewRegistry(bitWidth int, mutationProb, baseInfectivity, baseFatality float64) *Registry {
	r := &Registry{
		bits:         bitWidth,
		mutationProb: mutationProb,
		variants:     make(map[uint32]*Variant),
	}
	root := &Variant{Code: 0, Infectivity: baseInfectivity, Fatality: baseFatality}
	r.variants[0] = root
	r.order = append(r.order, 0)
	return r
}

// Get returns the variant for a genome code, falling back to the root
// for unknown codes.
func (r *Registry) Get(code uint32) *Variant {
	if v, ok := r.variants[code]; ok {
		return v
	}
	return r.variants[0]
}

// All returns every observed variant in first-seen order.
func (r *Registry) All() []*Variant {
	out := make([]*Variant, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.variants[code])
	}
	return out
}

// Len returns the number of distinct variants observed.
func (r *Registry) Len() int { return len(r.variants) }

// Mutate derives the strain an exposure carries from the source strain,
// flipping each genome bit with the configured probability. Codes seen
// before resolve to the existing variant; a novel code registers a
// child whose infectivity and fatality move away from the parent's in
// proportion to the mutation distance, with random sign. All draws come
// from the mutation stream.
func (r *Registry) Mutate(code uint32, tick uint64, stream *entropy.Stream) uint32 {
	if r.bits == 0 || r.mutationProb <= 0 {
		return code
	}

	parent := r.Get(code)
	child := code
	flipped := 0
	for i := 0; i < r.bits; i++ {
		if stream.Float64() < r.mutationProb {
			child ^= 1 << i
			flipped++
		}
	}
	if flipped == 0 || child == code {
		return code
	}
	if _, ok := r.variants[child]; ok {
		return child
	}

	drift := float64(flipped) / float64(r.bits)
	v := &Variant{
		Code:        child,
		Infectivity: clampProb(parent.Infectivity + drift*parent.Infectivity*randomSign(stream)),
		Fatality:    clampProb(parent.Fatality + drift*parent.Fatality*randomSign(stream)),
		FirstTick:   tick,
	}
	r.variants[child] = v
	r.order = append(r.order, child)
	return child
}

// Similarity returns the genome overlap between two variants in [0, 1].
func (r *Registry) Similarity(a, b uint32) float64 {
	if r.bits == 0 {
		return 1
	}
	diff := bits.OnesCount32((a ^ b) & mask(r.bits))
	return 1 - float64(diff)/float64(r.bits)
}

// Name returns the zero-padded hex name for a genome code.
func (r *Registry) Name(code uint32) string {
	hexDigits := (r.bits + 3) / 4
	if hexDigits < 1 {
		hexDigits = 1
	}
	return fmt.Sprintf("%0*X", hexDigits, code&mask(r.bits))
}

func mask(bitWidth int) uint32 {
	if bitWidth >= 32 {
		return ^uint32(0)
	}
	return (1 << bitWidth) - 1
}

func randomSign(stream *entropy.Stream) float64 {
	if stream.Float64() < 0.5 {
		return -1
	}
	return 1
}

func clampProb(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
