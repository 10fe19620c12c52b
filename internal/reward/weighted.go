package reward

import "github.com/EmeraldIsleCasino/wagercore/internal/rng"

// PickWeighted selects an index from weights proportionally to its weight.
// Non-positive weights are skipped. It returns false when no weight is positive.
func PickWeighted(src rng.Source, weights []int64) (int, bool) {
	var total int64

	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}

	if total <= 0 {
		return 0, false
	}

	idx := randInt64(src, total)

	var cum int64

	for i, w := range weights {
		if w <= 0 {
			continue
		}

		cum += w
		if idx < cum {
			return i, true
		}
	}

	// unreachable while idx < total
	return len(weights) - 1, true
}

// randInt64 returns a uniform value in [0, n).
func randInt64(src rng.Source, n int64) int64 {
	if n <= int64(^uint(0)>>1) {
		return int64(src.IntN(int(n)))
	}

	return int64(src.Float64() * float64(n))
}
