// Package seeded builds the per-run random sources. Every random draw in a
// run comes from a source returned here, keyed only by the run seed and a
// stream label, so a run's outputs are a pure function of its seed.
package seeded

import (
	"hash/fnv"
	"math/rand/v2"
)

// New returns a PCG source for seed on the named stream. Different streams
// with the same seed produce independent sequences.
func New(seed int64, stream string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(stream))
	return rand.New(rand.NewPCG(uint64(seed), h.Sum64()))
}
