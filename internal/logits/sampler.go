package logits

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
)

// Sampler draws token ids for one generation call. It owns the RNG seeded
// from SamplingConfig.Seed, so two samplers built from the same config
// produce the same sequence of draws for the same logits.
type Sampler struct {
	cfg SamplingConfig
	rng *rand.Rand
}

// NewSampler returns a sampler for cfg.
func NewSampler(cfg SamplingConfig) *Sampler {
	return &Sampler{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Sample picks the next token from logits.
func (s *Sampler) Sample(logits []float32) int {
	return Sample(logits, s.cfg, s.rng)
}

// Sample selects one token id:
//
//  1. With no temperature (or zero) the argmax is returned; ties go to the
//     lowest id.
//  2. Otherwise logits are scaled by 1/temperature and turned into
//     probabilities with a max-subtracted softmax.
//  3. If TopP < 1 only the smallest most-probable prefix reaching TopP is
//     kept and renormalized.
//  4. One id is drawn from the resulting distribution using rng.
//
// Sample panics on empty logits.
func Sample(logits []float32, cfg SamplingConfig, rng *rand.Rand) int {
	if cfg.Greedy() {
		return argmax(logits)
	}

	probs, ok := Softmax(logits, 1 / *cfg.Temperature)
	if !ok {
		return argmax(logits)
	}

	if cfg.TopP != nil && *cfg.TopP < 1 {
		kept := Nucleus(probs, *cfg.TopP)
		var mass float64
		for _, id := range kept {
			mass += probs[id]
		}
		r := rng.Float64()
		var c float64
		for _, id := range kept {
			c += probs[id] / mass
			if r < c {
				return id
			}
		}
		return kept[len(kept)-1]
	}

	r := rng.Float64()
	var c float64
	last := 0
	for id, p := range probs {
		if p == 0 {
			continue
		}
		c += p
		last = id
		if r < c {
			return id
		}
	}
	return last
}

// Softmax returns probabilities for logits scaled by invTemp. The maximum
// scaled logit is subtracted before exponentiation. ok is false when the
// distribution is degenerate (every logit -Inf or NaN).
func Softmax(logits []float32, invTemp float64) (probs []float64, ok bool) {
	probs = make([]float64, len(logits))
	maxv := math.Inf(-1)
	for i, l := range logits {
		v := float64(l) * invTemp
		probs[i] = v
		if v > maxv {
			maxv = v
		}
	}
	if math.IsInf(maxv, -1) || math.IsNaN(maxv) {
		return nil, false
	}
	var sum float64
	for i, v := range probs {
		e := math.Exp(v - maxv)
		if math.IsNaN(e) {
			e = 0
		}
		probs[i] = e
		sum += e
	}
	if sum == 0 || math.IsInf(sum, 0) {
		return nil, false
	}
	inv := 1 / sum
	for i := range probs {
		probs[i] *= inv
	}
	return probs, true
}

// Nucleus returns the ids of the smallest probability-descending prefix whose
// cumulative mass reaches topP. Equal probabilities are ordered by id. If
// rounding keeps the total below topP, every id is returned.
func Nucleus(probs []float64, topP float64) []int {
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(probs[b], probs[a])
	})
	var c float64
	for i, id := range order {
		c += probs[id]
		if c >= topP {
			return order[:i+1]
		}
	}
	return order
}

func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		// NaN never wins against a real score.
		if x[i] > bestV || (math.IsNaN(float64(bestV)) && !math.IsNaN(float64(x[i]))) {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}
