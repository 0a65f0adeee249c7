// Package rng is a thin facade over the system CSPRNG. It provides byte
// fills and unbiased uniform integers in arbitrary inclusive ranges.
//
// Like the teacher's secretcrypt package, a failure to read from
// crypto/rand is treated as a condition that should never happen in a
// correctly functioning environment and is not modeled as a recoverable
// error.
package rng

import (
	"crypto/rand"
	"math"
)

// Fill overwrites b entirely with CSPRNG output.
func Fill(b []byte) {
	if len(b) == 0 {
		return
	}
	if _, err := rand.Read(b); err != nil {
		panic("rng: crypto/rand.Read should never fail: " + err.Error())
	}
}

// NonZeroFill overwrites b entirely with CSPRNG output, guaranteeing that
// no byte is zero.
func NonZeroFill(b []byte) {
	Fill(b)
	for i, v := range b {
		for v == 0 {
			var one [1]byte
			Fill(one[:])
			v = one[0]
		}
		b[i] = v
	}
}

// Uint32n returns a uniformly distributed value in the inclusive range
// [0, n] without modulo bias, using rejection sampling under the smallest
// bitmask covering n.
func Uint32n(n uint32) uint32 {
	if n == 0 {
		return 0
	}

	mask := bitmask32(n)
	for {
		var buf [4]byte
		Fill(buf[:])
		v := (uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24) & mask
		if v <= n {
			return v
		}
	}
}

func bitmask32(n uint32) uint32 {
	if n == math.MaxUint32 {
		return math.MaxUint32
	}
	mask := n
	mask |= mask >> 1
	mask |= mask >> 2
	mask |= mask >> 4
	mask |= mask >> 8
	mask |= mask >> 16
	return mask
}

// IntRange returns a uniformly distributed int64 in the inclusive range
// [from, to], without modulo bias, even when the range straddles zero or
// from is a deeply negative value.
//
// The draw happens in the unsigned span (to - from); because that
// subtraction is performed in uint64 arithmetic it cannot overflow
// regardless of how the signed bounds are placed.
func IntRange(from, to int64) int64 {
	if from > to {
		panic("rng: IntRange requires from <= to")
	}
	span := uint64(to) - uint64(from)
	if span > math.MaxUint32 {
		// The core never needs spans this large; guard defensively
		// rather than silently truncating.
		panic("rng: IntRange span too large")
	}
	return from + int64(Uint32n(uint32(span)))
}

// IntRangeN returns a uniformly distributed int in the inclusive range
// [from, to]. Convenience wrapper around IntRange for the common case of
// small, non-negative, int-sized bounds (byte counts, indices).
func IntRangeN(from, to int) int {
	return int(IntRange(int64(from), int64(to)))
}
