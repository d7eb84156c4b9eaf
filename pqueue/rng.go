package pqueue

import (
	"math/bits"

	"github.com/gsingh-ds/lf-containers/internal/verptr"
)

// xorshiftRNG is a per-goroutine xorshift128 generator, seeded with fixed
// constants so every goroutine's sequence is independent of allocation
// order and requires no syscall or crypto/rand round trip on the hot
// path (this queue's random height draw happens on every Push).
type xorshiftRNG struct {
	x, y, z, w uint32
}

func newXorshiftRNG() *xorshiftRNG {
	return &xorshiftRNG{x: 123456789, y: 362436069, z: 521288629, w: 88675123}
}

func (r *xorshiftRNG) next() uint32 {
	t := r.x ^ (r.x << 11)
	r.x, r.y, r.z = r.y, r.z, r.w
	r.w = r.w ^ (r.w >> 19) ^ (t ^ (t >> 8))
	return r.w
}

// randomHeight draws a tower height in [1, maxHeight], each additional
// layer above 1 being a quarter as likely as the one below it.
func randomHeight(rng *xorshiftRNG, maxHeight uint8) uint8 {
	height := uint8(1)
	for height < maxHeight && rng.next()&3 == 0 {
		height++
	}
	return height
}

func log2Ceil(n uint64) uint8 {
	if n <= 1 {
		return 0
	}
	return uint8(bits.Len64(n - 1))
}

// toTowerHeight derives a fixed per-node link array length from a hint
// about how many entries the list is expected to hold concurrently.
func toTowerHeight(expectedListSize uint64) uint8 {
	h := log2Ceil(expectedListSize) / 2
	if h < 1 {
		h = 1
	}
	return h
}

// toExpectedListSize is the inverse of toTowerHeight: the generation-lag
// counteraction logic keys off this derived value, not the caller's raw
// hint, since it's the tower height that actually governs how many base
// layer steps separate two upper layer observations.
func toExpectedListSize(towerHeight uint8) uint64 {
	return uint64(1) << (towerHeight * 2)
}

func versionSubOne(v uint32) uint32 {
	if v == 0 {
		return verptr.MaxVersion - 1
	}
	return v - 1
}

// versionStep advances base by step increments, each skipping the
// reserved zero value the same way a single IncVersion does, so a
// multi-step jump can never land on the unflagged sentinel either.
func versionStep(base uint32, step uint8) uint32 {
	v := base
	for i := uint8(0); i < step; i++ {
		v = verptr.IncVersion(v)
	}
	return v
}

func versionDelta(from, to uint32) uint32 {
	return (to - from + verptr.MaxVersion) % verptr.MaxVersion
}
