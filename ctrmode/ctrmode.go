// Package ctrmode implements the CTR construction TUPW formats 2 and 3
// use, built directly on top of an AES block cipher in ECB mode (one
// block.Encrypt call per counter block) rather than crypto/cipher's own
// NewCTR, so that the counter/keystream relationship matches the
// original wire format bit for bit.
package ctrmode

import (
	"crypto/cipher"

	"github.com/dbsystel/tupw-go/secbytes"
	"github.com/dbsystel/tupw-go/tupwerr"
)

// Stream XORs plaintext/ciphertext against a keystream generated by
// encrypting successive big-endian counter blocks under block, starting
// from iv. The counter wraps to zero on overflow. block's block size
// must equal len(iv); any mismatch fails with tupwerr.Argument.
func Stream(block cipher.Block, iv []byte, in []byte) ([]byte, error) {
	bs := block.BlockSize()
	if bs != len(iv) {
		return nil, tupwerr.New(tupwerr.Argument, "cipher block size %d does not match IV length %d", bs, len(iv))
	}

	counter := make([]byte, bs)
	copy(counter, iv)
	defer secbytes.Zero(counter)

	out := make([]byte, len(in))
	keystream := make([]byte, bs)
	defer secbytes.Zero(keystream)

	for offset := 0; offset < len(in); offset += bs {
		block.Encrypt(keystream, counter)

		n := bs
		if remaining := len(in) - offset; remaining < n {
			n = remaining
		}
		for i := 0; i < n; i++ {
			out[offset+i] = in[offset+i] ^ keystream[i]
		}

		incrementCounter(counter)
	}

	return out, nil
}

// incrementCounter treats counter as a big-endian unsigned integer and
// adds one, wrapping to all-zero on overflow.
func incrementCounter(counter []byte) {
	for i := len(counter) - 1; i >= 0; i-- {
		counter[i]++
		if counter[i] != 0 {
			return
		}
	}
}
