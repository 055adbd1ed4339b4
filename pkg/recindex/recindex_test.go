package recindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchFindsInsertedOffsets(t *testing.T) {
	idx := New()
	idx.Insert(1, 100)
	idx.Insert(2, 164)
	idx.Insert(5, 400)

	off, ok := idx.Search(2)
	assert.True(t, ok)
	assert.Equal(t, int64(164), off)

	_, ok = idx.Search(3)
	assert.False(t, ok)
}

func TestSeekFirstAtOrAfterSkipsGaps(t *testing.T) {
	idx := New()
	idx.Insert(10, 1000)
	idx.Insert(20, 2000)

	off, ok := idx.SeekFirstAtOrAfter(15)
	assert.True(t, ok)
	assert.Equal(t, int64(2000), off)

	_, ok = idx.SeekFirstAtOrAfter(21)
	assert.False(t, ok)
}

func TestInsertPanicsOnNonIncreasingRecordNumber(t *testing.T) {
	idx := New()
	idx.Insert(5, 0)
	assert.Panics(t, func() { idx.Insert(5, 10) })
	assert.Panics(t, func() { idx.Insert(4, 10) })
}

func TestLenReflectsInsertedCount(t *testing.T) {
	idx := New()
	assert.Equal(t, 0, idx.Len())
	idx.Insert(1, 0)
	idx.Insert(2, 10)
	assert.Equal(t, 2, idx.Len())
}
