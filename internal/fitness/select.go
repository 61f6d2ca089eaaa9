package fitness

import (
	"math/rand"
	"sort"
)

// Candidate pairs an agent id with its fitness score and capabilities,
// the minimal shape the selection strategies need.
type Candidate struct {
	AgentID      string
	Score        float64
	Capabilities []string
}

// Strategy selects one candidate from a non-empty slice using rng for
// any randomness it needs.
type Strategy func(candidates []Candidate, rng *rand.Rand) *Candidate

// Roulette selects with probability proportional to score. Candidates
// with a zero total score fall back to uniform selection.
func Roulette(candidates []Candidate, rng *rand.Rand) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	var total float64
	for _, c := range candidates {
		total += c.Score
	}
	if total <= 0 {
		return &candidates[rng.Intn(len(candidates))]
	}
	pick := rng.Float64() * total
	var cum float64
	for i := range candidates {
		cum += candidates[i].Score
		if pick <= cum {
			return &candidates[i]
		}
	}
	return &candidates[len(candidates)-1]
}

// EliteTopK selects uniformly at random, via rng, among the k
// highest-scoring candidates (k below 1 is treated as 1), so
// EliteTopK(1) always returns a top scorer.
func EliteTopK(k int) Strategy {
	if k < 1 {
		k = 1
	}
	return func(candidates []Candidate, rng *rand.Rand) *Candidate {
		if len(candidates) == 0 {
			return nil
		}
		sorted := make([]Candidate, len(candidates))
		copy(sorted, candidates)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
		top := k
		if top > len(sorted) {
			top = len(sorted)
		}
		pick := sorted[rng.Intn(top)]
		return &pick
	}
}

// Random selects uniformly at random, the baseline strategy.
func Random(candidates []Candidate, rng *rand.Rand) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[rng.Intn(len(candidates))]
}

// CapabilityFirst filters to candidates whose Capabilities is a
// superset of required, then delegates to inner (typically Roulette).
func CapabilityFirst(required []string, inner Strategy) Strategy {
	return func(candidates []Candidate, rng *rand.Rand) *Candidate {
		filtered := make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if hasAll(c.Capabilities, required) {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 0 {
			return nil
		}
		return inner(filtered, rng)
	}
}

func hasAll(have, required []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
