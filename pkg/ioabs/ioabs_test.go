package ioabs

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemMediumWriteReadRoundTrip(t *testing.T) {
	m := NewMemMedium(0)
	n, err := m.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = m.Seek(0, SeekSet)
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err = m.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestMemMediumTruncateGrowsAndShrinks(t *testing.T) {
	m := NewMemMedium(10)
	require.NoError(t, m.Truncate(20))
	length, err := m.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(20), length)

	require.NoError(t, m.Truncate(4))
	length, err = m.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(4), length)
}

func TestMemMediumShortReadIsErrIO(t *testing.T) {
	m := NewMemMedium(2)
	buf := make([]byte, 10)
	_, err := m.Read(buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
}

func TestFileMediumCreateOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/medium.bin"

	created, err := CreateFile(path)
	require.NoError(t, err)
	_, err = created.Write([]byte("abcd"))
	require.NoError(t, err)
	require.NoError(t, created.Close())

	opened, err := OpenFile(path)
	require.NoError(t, err)
	defer opened.Close()

	length, err := opened.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(4), length)
}
