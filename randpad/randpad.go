// Package randpad implements the random-padding scheme used by TUPW
// format 3 onward: random bytes are appended to bring the length up to a
// multiple of blockSize, with a full extra block appended when the input
// is already aligned.
package randpad

import "github.com/dbsystel/tupw-go/rng"

// Add appends random padding bytes to data so the result's length is a
// multiple of blockSize. If data is already a multiple of blockSize, a
// full block of random bytes is appended.
func Add(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	rng.Fill(out[len(data):])
	return out
}
