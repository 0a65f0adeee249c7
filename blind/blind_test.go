package blind

import (
	"bytes"
	"testing"

	"github.com/dbsystel/tupw-go/tupwerr"
	"github.com/stretchr/testify/assert"
)

func TestUnblindInvertsBuild(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("x"),
		[]byte("hello world"),
		bytes.Repeat([]byte{0xAB}, 300),
	}

	for _, c := range cases {
		for _, minLen := range []int{0, 1, 17, 64, 256} {
			blinded, err := Build(c, minLen)
			assert.NoError(t, err)

			out, err := Unblind(blinded)
			assert.NoError(t, err)
			assert.Equal(t, c, out)

			assert.GreaterOrEqual(t, len(blinded), minLen)
			assert.GreaterOrEqual(t, len(blinded), len(c)+3)
		}
	}
}

func TestBuildRejectsOutOfRangeMinLen(t *testing.T) {
	_, err := Build([]byte("x"), -1)
	assert.Error(t, err)

	_, err = Build([]byte("x"), 257)
	assert.Error(t, err)
}

func TestBuildIsNondeterministic(t *testing.T) {
	src := []byte("same plaintext")
	a, err := Build(src, 17)
	assert.NoError(t, err)
	b, err := Build(src, 17)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestUnblindRejectsTruncatedInput(t *testing.T) {
	_, err := Unblind([]byte{1})
	assert.True(t, tupwerr.Is(err, tupwerr.Argument))
}

func TestUnblindRejectsInconsistentLengths(t *testing.T) {
	blinded, err := Build([]byte("payload"), 17)
	assert.NoError(t, err)

	_, err = Unblind(blinded[:len(blinded)-1])
	assert.True(t, tupwerr.Is(err, tupwerr.Argument))
}
