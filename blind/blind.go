// Package blind implements byte-array blinding: wrapping a plaintext with
// random-length random prefixes and suffixes so that the ciphertext length
// reveals little about the true plaintext length, up to roughly 29 bytes
// of the combined blinder lengths.
//
// Layout (see spec §3 "Blinded payload layout"):
//
//	prefix_len (1) | suffix_len (1) | packed_len (1-4) | prefix | plaintext | suffix
package blind

import (
	"github.com/dbsystel/tupw-go/packedint"
	"github.com/dbsystel/tupw-go/rng"
	"github.com/dbsystel/tupw-go/secbytes"
	"github.com/dbsystel/tupw-go/tupwerr"
)

const maxBlinderLen = 15

// Build wraps src with random prefix and suffix blinders, growing them
// symmetrically (odd remainders alternate prefix/suffix) until the total
// assembled length is at least minLen.
func Build(src []byte, minLen int) ([]byte, error) {
	if minLen < 0 || minLen > 256 {
		return nil, tupwerr.New(tupwerr.Argument, "minimum blinding length %d out of range [0, 256]", minLen)
	}

	packedLen, err := packedint.Encode(len(src))
	if err != nil {
		return nil, err
	}

	prefixLen := rng.IntRangeN(0, maxBlinderLen)
	suffixLen := rng.IntRangeN(0, maxBlinderLen)

	total := func() int { return 2 + len(packedLen) + prefixLen + len(src) + suffixLen }

	growPrefix := true
	for total() < minLen {
		if growPrefix {
			prefixLen++
		} else {
			suffixLen++
		}
		growPrefix = !growPrefix
	}

	out := make([]byte, 0, total())
	out = append(out, byte(prefixLen), byte(suffixLen))
	out = append(out, packedLen...)

	prefix := make([]byte, prefixLen)
	rng.Fill(prefix)
	out = append(out, prefix...)
	secbytes.Zero(prefix)

	out = append(out, src...)

	suffix := make([]byte, suffixLen)
	rng.Fill(suffix)
	out = append(out, suffix...)
	secbytes.Zero(suffix)

	return out, nil
}

// Unblind validates and strips the blinding layout built by Build,
// returning the original plaintext. A structurally invalid blinded array
// fails with tupwerr.Argument, per spec §4.6's stated error kind.
func Unblind(src []byte) ([]byte, error) {
	if len(src) < 2 {
		return nil, tupwerr.New(tupwerr.Argument, "Invalid blinded byte array")
	}

	prefixLen := int(src[0])
	suffixLen := int(src[1])

	value, packedLen, err := packedint.Decode(src, 2)
	if err != nil {
		return nil, tupwerr.Wrap(tupwerr.Argument, err, "Invalid blinded byte array")
	}

	start := 2 + packedLen + prefixLen
	end := start + value

	if start < 0 || end < start || end+suffixLen != len(src) {
		return nil, tupwerr.New(tupwerr.Argument, "Invalid blinded byte array")
	}

	out := make([]byte, value)
	copy(out, src[start:end])
	return out, nil
}
