package pvfsid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSIDUint32RoundTrip(t *testing.T) {
	s := FromUint32(0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), s.Uint32())
}

func TestSIDArrayEncodeDecode(t *testing.T) {
	arr := SIDArray{FromUint32(1), FromUint32(2), FromUint32(3)}

	encoded := arr.Encode(nil)
	assert.Len(t, encoded, arr.EncodedLen())

	decoded, n, err := DecodeSIDArray(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.True(t, arr.Equal(decoded))
}

func TestSIDArrayEmpty(t *testing.T) {
	var arr SIDArray
	encoded := arr.Encode(nil)
	assert.Equal(t, 4, len(encoded))

	decoded, n, err := DecodeSIDArray(encoded)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Empty(t, decoded)
}

func TestDecodeSIDArrayTruncated(t *testing.T) {
	_, _, err := DecodeSIDArray([]byte{1, 0, 0})
	assert.Error(t, err)

	_, _, err = DecodeSIDArray([]byte{2, 0, 0, 0, 1, 2, 3})
	assert.Error(t, err)
}

func TestSIDArrayEqualRejectsDifferentLengths(t *testing.T) {
	a := SIDArray{FromUint32(1)}
	b := SIDArray{FromUint32(1), FromUint32(2)}
	assert.False(t, a.Equal(b))
}
