// Package entropy computes Shannon entropy over a byte histogram, used by
// tupwcrypto to reject weak source material before it is mixed into key
// derivation.
package entropy

import "math"

// Calculator accumulates a 256-entry byte histogram and the total byte
// count observed so far.
type Calculator struct {
	histogram [256]uint64
	total     uint64
}

// New returns a Calculator with no observations.
func New() *Calculator {
	return &Calculator{}
}

// Add folds b into the histogram.
func (c *Calculator) Add(b []byte) {
	for _, v := range b {
		c.histogram[v]++
	}
	c.total += uint64(len(b))
}

// Entropy returns the Shannon entropy of the observed bytes, in bits per
// byte. Returns 0 if no bytes have been observed.
func (c *Calculator) Entropy() float64 {
	if c.total == 0 {
		return 0
	}

	var h float64
	n := float64(c.total)
	for _, count := range c.histogram {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		h -= p * math.Log2(p)
	}
	return h
}

// InformationBits returns round(entropy * total), the total information
// content of the observed bytes in bits.
func (c *Calculator) InformationBits() int64 {
	return int64(math.Round(c.Entropy() * float64(c.total)))
}

// Total returns the number of bytes observed so far.
func (c *Calculator) Total() uint64 {
	return c.total
}

// allConstantThreshold is the entropy-per-byte (in bits) below which the
// source is considered to consist of effectively one repeated value
// rather than merely being short. 2^-13 bits/byte, per spec §4.9.
const allConstantThreshold = 1.0 / (1 << 13)

// IsAllConstant reports whether the observed bytes carry essentially zero
// entropy (all identical), as opposed to simply being too short to carry
// 128 bits of information. It reports false when no bytes were observed.
func (c *Calculator) IsAllConstant() bool {
	return c.total > 0 && c.Entropy() < allConstantThreshold
}
