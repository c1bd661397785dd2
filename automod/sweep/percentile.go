package sweep

import (
	"fmt"
	"math"
	"slices"
)

// Percentile returns the p'th percentile of xs by nearest rank. p outside
// [0, 100] is a programming error and panics; an empty sample has no
// percentile and returns ok=false.
func Percentile(p float64, xs []int) (int, bool) {
	if p < 0 || p > 100 {
		panic(fmt.Sprintf("percentile out of range: %v", p))
	}
	if len(xs) == 0 {
		return 0, false
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	idx := int(math.Round(p / 100 * float64(len(sorted)-1)))
	return sorted[idx], true
}
