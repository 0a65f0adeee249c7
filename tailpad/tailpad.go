// Package tailpad implements the legacy "arbitrary-tail" padding scheme
// used by TUPW formats 1 and 2. Only Remove is needed: format 6 never
// writes this padding, but formats 1-2 must remain decryptable.
package tailpad

import "github.com/dbsystel/tupw-go/tupwerr"

// Remove strips arbitrary-tail padding from data. The last byte p names
// the number of trailing padding bytes and must satisfy
// 1 <= p <= blockSize and p <= len(data).
func Remove(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, tupwerr.New(tupwerr.Argument, "cannot remove padding from empty data")
	}

	p := int(data[len(data)-1])
	if p <= 0 || p > blockSize || p > len(data) {
		return nil, tupwerr.New(tupwerr.Argument, "invalid arbitrary-tail padding count %d", p)
	}

	return append([]byte(nil), data[:len(data)-p]...), nil
}
