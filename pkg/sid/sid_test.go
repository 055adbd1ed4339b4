package sid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextToBinaryToText(t *testing.T) {
	s, err := ParseText("S-1-5-32-544")
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-32-544", s.Text())

	bin, err := s.EncodeBinary()
	require.NoError(t, err)

	back, err := DecodeBinary(bin)
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-32-544", back.Text())
}

func TestBinaryToTextToBinary(t *testing.T) {
	original := &SID{Revision: 1, Authority: 5, SubAuthority: []uint32{21, 111111, 222222, 1001}}
	bin, err := original.EncodeBinary()
	require.NoError(t, err)

	parsed, err := ParseText(original.Text())
	require.NoError(t, err)
	reBin, err := parsed.EncodeBinary()
	require.NoError(t, err)

	assert.Equal(t, bin, reBin)
}

func TestParseRejectsMalformedPrefix(t *testing.T) {
	_, err := ParseText("X-1-5-32")
	require.Error(t, err)
}

func TestParseRejectsOutOfRangeAuthority(t *testing.T) {
	_, err := ParseText("S-1-281474976710656") // 2^48
	require.Error(t, err)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	buf := []byte{1, 2, 0, 0, 0, 0, 0, 0} // count=2 but no sub-authorities follow
	_, err := DecodeBinary(buf)
	require.Error(t, err)
}

func TestNoSubAuthorities(t *testing.T) {
	s, err := ParseText("S-1-5")
	require.NoError(t, err)
	assert.Empty(t, s.SubAuthority)
	bin, err := s.EncodeBinary()
	require.NoError(t, err)
	assert.Equal(t, 8, len(bin))
}
