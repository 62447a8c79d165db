package app

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestShuffleIsPermutation(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}

	out := shuffleIDs(rnd, ids)
	if len(out) != len(ids) {
		t.Fatalf("expected %d ids, got %d", len(ids), len(out))
	}

	seen := make(map[string]int)
	for _, id := range out {
		seen[id]++
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Fatalf("expected %s once, got %d", id, seen[id])
		}
	}

	// Input untouched.
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		if ids[i] != id {
			t.Fatalf("input mutated at %d: %v", i, ids)
		}
	}
}

func TestShuffleEmptyAndSingle(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))

	if out := shuffleIDs(rnd, nil); len(out) != 0 {
		t.Fatalf("expected empty order, got %v", out)
	}
	if out := shuffleIDs(rnd, []string{"only"}); len(out) != 1 || out[0] != "only" {
		t.Fatalf("expected single-element order, got %v", out)
	}
}

// Durstenfeld should spread the 6 permutations of 3 elements roughly evenly;
// with 6000 trials each bucket expects ~1000, and the bounds are generous
// enough to keep the test deterministic for any sane seed.
func TestShuffleRoughlyUniform(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	ids := []string{"a", "b", "c"}

	counts := make(map[string]int)
	const trials = 6000
	for i := 0; i < trials; i++ {
		out := shuffleIDs(rnd, ids)
		counts[fmt.Sprint(out)]++
	}

	if len(counts) != 6 {
		t.Fatalf("expected all 6 permutations, got %d: %v", len(counts), counts)
	}
	for perm, n := range counts {
		if n < 800 || n > 1200 {
			t.Fatalf("permutation %s occurred %d times, outside [800,1200]", perm, n)
		}
	}
}
