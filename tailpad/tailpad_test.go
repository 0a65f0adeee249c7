package tailpad

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoveStripsDeclaredTail(t *testing.T) {
	data := []byte{'h', 'e', 'l', 'l', 'o', 3, 3, 3}
	out, err := Remove(data, 16)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), out)
}

func TestRemoveRejectsZeroPadCount(t *testing.T) {
	data := []byte{'x', 0}
	_, err := Remove(data, 16)
	assert.Error(t, err)
}

func TestRemoveRejectsPadCountAboveBlockSize(t *testing.T) {
	data := []byte{'x', 17}
	_, err := Remove(data, 16)
	assert.Error(t, err)
}

func TestRemoveRejectsPadCountAboveDataLength(t *testing.T) {
	data := []byte{5}
	_, err := Remove(data, 16)
	assert.Error(t, err)
}

func TestRemoveRejectsEmptyInput(t *testing.T) {
	_, err := Remove(nil, 16)
	assert.Error(t, err)
}
