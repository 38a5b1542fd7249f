package dataset

import (
	"math/rand"
	"sort"
	"testing"
)

func TestRanges(t *testing.T) {
	cases := []struct {
		n, size int
		want    []Range
	}{
		{n: 5, size: 2, want: []Range{{0, 2}, {2, 4}, {4, 5}}},
		{n: 4, size: 2, want: []Range{{0, 2}, {2, 4}}},
		{n: 3, size: 10, want: []Range{{0, 3}}},
		{n: 0, size: 4, want: nil},
	}
	for _, tc := range cases {
		got := Ranges(tc.n, tc.size)
		if len(got) != len(tc.want) {
			t.Fatalf("Ranges(%d, %d) = %v, want %v", tc.n, tc.size, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("Ranges(%d, %d)[%d] = %v, want %v", tc.n, tc.size, i, got[i], tc.want[i])
			}
		}
	}
}

func TestPermutationIsFreshPerCall(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	first := Permutation(50, rng)
	second := Permutation(50, rng)

	sorted := append([]int(nil), first...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			t.Fatalf("Permutation() is not a permutation: %v", first)
		}
	}
	same := true
	for i := range first {
		if first[i] != second[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("consecutive permutations should differ")
	}
}
