package logits

// ApplyRepeatPenalty penalizes every distinct token among the last window
// entries of history. Non-negative logits are divided by penalty and negative
// ones multiplied, so a repeat is always made less likely.
//
// A penalty of exactly 1 returns logits itself. Otherwise the result is a new
// slice and logits is left untouched. History ids outside the vocabulary are
// ignored.
func ApplyRepeatPenalty(logits []float32, history []int, window int, penalty float32) []float32 {
	if penalty == 1 {
		return logits
	}
	out := make([]float32, len(logits))
	copy(out, logits)
	if window <= 0 || len(history) == 0 {
		return out
	}

	recent := history[max(len(history)-window, 0):]
	seen := make(map[int]struct{}, len(recent))
	for _, id := range recent {
		if id < 0 || id >= len(out) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if out[id] >= 0 {
			out[id] /= penalty
		} else {
			out[id] *= penalty
		}
	}
	return out
}
