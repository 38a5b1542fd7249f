package dataset

import "math/rand"

// Range is a half-open [Start, End) slice of a permutation.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int {
	return r.End - r.Start
}

// Permutation returns a fresh shuffled index order for one epoch.
func Permutation(n int, rng *rand.Rand) []int {
	return rng.Perm(n)
}

// Identity returns the ordered permutation used for prediction and scoring.
func Identity(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}

// Ranges carves n items into consecutive batches of at most size items. The
// last batch may be short; no empty batch is produced.
func Ranges(n, size int) []Range {
	if n <= 0 || size <= 0 {
		return nil
	}
	ranges := make([]Range, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		ranges = append(ranges, Range{Start: start, End: min(start+size, n)})
	}
	return ranges
}
