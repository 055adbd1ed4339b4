package wchar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripASCII(t *testing.T) {
	encoded, n, err := EncodeMBString("hello")
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)

	decoded, consumed, err := DecodeWideString(encoded, len(encoded))
	require.NoError(t, err)
	assert.Equal(t, "hello", decoded)
	assert.Equal(t, len(encoded), consumed)
}

func TestRoundTripSupplementaryPlane(t *testing.T) {
	s := "emoji:\U0001F600 end"
	encoded, _, err := EncodeMBString(s)
	require.NoError(t, err)

	decoded, _, err := DecodeWideString(encoded, len(encoded))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestEmptyStringEncodesToJustTerminator(t *testing.T) {
	encoded, n, err := EncodeMBString("")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, encoded)
	assert.Equal(t, 2, n)
}

func TestDecodeSuccessiveFields(t *testing.T) {
	first, _, err := EncodeMBString("alpha")
	require.NoError(t, err)
	second, _, err := EncodeMBString("beta")
	require.NoError(t, err)

	buf := append(append([]byte{}, first...), second...)

	s1, n1, err := DecodeWideString(buf, len(buf))
	require.NoError(t, err)
	assert.Equal(t, "alpha", s1)

	s2, _, err := DecodeWideString(buf[n1:], len(buf)-n1)
	require.NoError(t, err)
	assert.Equal(t, "beta", s2)
}

func TestDecodeMissingTerminatorFails(t *testing.T) {
	_, _, err := DecodeWideString([]byte{'a', 0, 'b', 0}, 4)
	require.Error(t, err)
}
