// Package packedint implements the variable-length packed unsigned integer
// encoding used to frame the original plaintext length inside a blinded
// payload (see blind). The top two bits of the first byte hold the
// encoded length minus one; the remaining bits, together with any
// subsequent bytes, hold the big-endian value minus the smallest value
// that needs that many bytes (0, 64, 16,448 or 4,210,752).
package packedint

import "github.com/dbsystel/tupw-go/tupwerr"

const (
	// MaxValue is the largest value representable in the 4-byte form.
	MaxValue = 1_077_952_575

	max1Byte = 63
	max2Byte = 16_447
	max3Byte = 4_210_751
)

// Encode returns the packed representation of n. n must be in
// [0, MaxValue]; values outside that range fail with tupwerr.Argument.
func Encode(n int) ([]byte, error) {
	if n < 0 || n > MaxValue {
		return nil, tupwerr.New(tupwerr.Argument, "value %d out of range [0, %d] for packed unsigned integer", n, MaxValue)
	}

	switch {
	case n <= max1Byte:
		return []byte{byte(n)}, nil
	case n <= max2Byte:
		v := n - (max1Byte + 1)
		return []byte{
			0x40 | byte(v>>8),
			byte(v),
		}, nil
	case n <= max3Byte:
		v := n - (max2Byte + 1)
		return []byte{
			0x80 | byte(v>>16),
			byte(v >> 8),
			byte(v),
		}, nil
	default:
		v := n - (max3Byte + 1)
		return []byte{
			0xC0 | byte(v>>24),
			byte(v >> 16),
			byte(v >> 8),
			byte(v),
		}, nil
	}
}

// ExpectedLength reads only buf[offset] to determine how many bytes (1-4)
// the packed integer at that position occupies.
func ExpectedLength(buf []byte, offset int) (int, error) {
	if offset < 0 || offset >= len(buf) {
		return 0, tupwerr.New(tupwerr.Argument, "offset %d out of range for buffer of length %d", offset, len(buf))
	}
	return int(buf[offset]>>6) + 1, nil
}

// Decode reads a packed unsigned integer starting at buf[offset] and
// returns its value and encoded length.
func Decode(buf []byte, offset int) (value int, length int, err error) {
	length, err = ExpectedLength(buf, offset)
	if err != nil {
		return 0, 0, err
	}
	if offset+length > len(buf) {
		return 0, 0, tupwerr.New(tupwerr.Argument, "truncated packed unsigned integer at offset %d", offset)
	}

	first := int(buf[offset] & 0x3f)
	v := first
	for i := 1; i < length; i++ {
		v = (v << 8) | int(buf[offset+i])
	}

	switch length {
	case 1:
		value = v
	case 2:
		value = v + (max1Byte + 1)
	case 3:
		value = v + (max2Byte + 1)
	case 4:
		value = v + (max3Byte + 1)
	}

	return value, length, nil
}
