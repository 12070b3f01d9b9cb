package schedule

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"
)

// seedFor derives a reproducible 64-bit seed from (channelNumber, dayOfYear,
// sequenceKey) so the same calendar day produces the same shuffle order
// across restarts, per §4.3's tie-break rule.
func seedFor(channelNumber string, dayOfYear int, sequenceKey string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(channelNumber))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(dayOfYear)))
	h.Write([]byte{0})
	h.Write([]byte(sequenceKey))
	return h.Sum64()
}

// shuffledIndices returns a deterministic permutation of [0,n) seeded by
// seed.
func shuffledIndices(n int, seed uint64) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	r := rand.New(rand.NewPCG(seed, seed>>1|1))
	r.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx
}
