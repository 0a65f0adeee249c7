// Package secbytes collects the small array-level helpers the rest of
// TUPW relies on to keep secret material from lingering or leaking
// through timing: constant-time comparison and secure zeroization.
package secbytes

import "crypto/subtle"

// Zero overwrites every byte of b with zero. It is the caller's
// responsibility to call Zero on every scratch buffer that held key or
// plaintext material before it goes out of scope.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroUint32 overwrites every element of s with zero.
func ZeroUint32(s []uint32) {
	for i := range s {
		s[i] = 0
	}
}

// ConstantTimeEqual reports whether a and b hold the same bytes, examining
// every byte regardless of where a mismatch occurs and never branching on
// the input content. Used for MAC verification and by
// protectedbytes.Bytes.Equals.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
