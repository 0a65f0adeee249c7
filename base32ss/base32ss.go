// Package base32ss implements the Base32-SpellSafe codec used by TUPW
// format 6, plus the legacy unpadded Base64 codec kept for decrypting
// format 1-5 strings.
//
// The SpellSafe alphabet has 32 symbols, excludes the digit '1' (reserved
// as the field separator for format 6), and excludes the letters most
// often confused with digits or with each other: 'I' and 'O'. See
// DESIGN.md for why the exact 32-symbol set was chosen this way.
package base32ss

import (
	"encoding/base64"
	"strings"

	"github.com/dbsystel/tupw-go/tupwerr"
)

// legacyBase64Encoding is standard Base64 with padding stripped, matching
// the original formats' "unpadded input accepted" behavior (spec Open
// Questions: a deliberate compatibility choice, not a stricter deviation).
var legacyBase64Encoding = base64.RawStdEncoding

// Alphabet is the 32-symbol Base32-SpellSafe alphabet. Index i is the
// glyph for the 5-bit value i.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Separator is the field separator for a format-6 encryption string. It is
// deliberately excluded from Alphabet.
const Separator = '1'

var decodeTable [256]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		decodeTable[Alphabet[i]] = int8(i)
	}
}

// Encode packs b into 5-bit groups and emits one Alphabet symbol per
// group. No padding is emitted; Decode recovers the original length from
// the encoded string's length modulo 8.
func Encode(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	var out strings.Builder
	out.Grow((len(b)*8 + 4) / 5)

	var buf uint64
	var bits uint

	for _, by := range b {
		buf = (buf << 8) | uint64(by)
		bits += 8

		for bits >= 5 {
			bits -= 5
			idx := (buf >> bits) & 0x1f
			out.WriteByte(Alphabet[idx])
		}
	}

	if bits > 0 {
		idx := (buf << (5 - bits)) & 0x1f
		out.WriteByte(Alphabet[idx])
	}

	return out.String()
}

// Decode reverses Encode. It fails with tupwerr.Argument on any character
// outside Alphabet (including the separator '1').
func Decode(s string) ([]byte, error) {
	if len(s) == 0 {
		return []byte{}, nil
	}

	out := make([]byte, 0, len(s)*5/8)

	var buf uint64
	var bits uint

	for i := 0; i < len(s); i++ {
		v := decodeTable[s[i]]
		if v < 0 {
			return nil, tupwerr.New(tupwerr.Argument, "invalid Base32-SpellSafe character %q at position %d", s[i], i)
		}

		buf = (buf << 5) | uint64(v)
		bits += 5

		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>bits))
		}
	}

	return out, nil
}

// EncodeLegacyBase64 encodes b using unpadded standard Base64, matching
// the wire encoding used by TUPW formats 1-5.
func EncodeLegacyBase64(b []byte) string {
	return legacyBase64Encoding.EncodeToString(b)
}

// DecodeLegacyBase64 decodes standard Base64 as used by TUPW formats 1-5.
// The legacy encoder never emits padding, but known-valid format 3/5
// strings (spec §8) carry trailing '=' padding from other encoders, so
// decoding trims it before applying the unpadded codec rather than
// rejecting it.
func DecodeLegacyBase64(s string) ([]byte, error) {
	b, err := legacyBase64Encoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, tupwerr.Wrap(tupwerr.Argument, err, "invalid legacy Base64 encoding")
	}
	return b, nil
}
