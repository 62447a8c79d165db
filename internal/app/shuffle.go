package app

import "math/rand"

// shuffleIDs returns a uniformly random permutation of ids using the
// Durstenfeld variant of Fisher-Yates. The input slice is left untouched;
// the copy becomes the attempt's immutable question order.
func shuffleIDs(rnd *rand.Rand, ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
