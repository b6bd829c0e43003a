package util

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// New returns a deterministic generator. Seed 0 is remapped to 1 so the zero
// value of a config still yields a reproducible run.
func New(seed int64) *rand.Rand {
	if seed == 0 {
		seed = 1
	}
	return rand.New(rand.NewSource(seed))
}

// NewSeed draws a seed from crypto/rand for runs that did not pin one.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1), nil
}

// WorkerSeed derives the seed of run i on worker w from a base seed.
func WorkerSeed(base int64, worker, i int) int64 {
	return base + int64(worker)*7919 + int64(i)
}
