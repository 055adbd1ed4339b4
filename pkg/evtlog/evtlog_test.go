package evtlog

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/elfconv/pkg/ioabs"
	"github.com/ssargent/elfconv/pkg/record"
)

func minimalContents() *record.Contents {
	return &record.Contents{SourceName: "", ComputerName: ""}
}

func newLog(t *testing.T, size uint32) *Log {
	t.Helper()
	l, err := OpenCreate(ioabs.NewMemMedium(0), size)
	require.NoError(t, err)
	return l
}

func TestAppendAndReadSingleRecord(t *testing.T) {
	l := newLog(t, 200)
	_, err := l.AppendRecord(minimalContents(), false)
	require.NoError(t, err)

	c, err := l.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), c.RecordNumber)
	assert.Equal(t, uint32(2), l.Header().CurrentRecordNumber)
	assert.Equal(t, uint32(1), l.Header().OldestRecordNumber)
}

func TestAppendMultipleRecordsSequential(t *testing.T) {
	l := newLog(t, 400)
	for i := 0; i < 3; i++ {
		_, err := l.AppendRecord(minimalContents(), false)
		require.NoError(t, err)
	}

	all, err := l.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint32{1, 2, 3}, []uint32{all[0].RecordNumber, all[1].RecordNumber, all[2].RecordNumber})
}

func TestAppendFailsWhenFullWithoutEvict(t *testing.T) {
	l := newLog(t, HeaderLen+record.MinRecordLen+EOFSentinelLen+1)
	_, err := l.AppendRecord(minimalContents(), false)
	require.NoError(t, err)

	_, err = l.AppendRecord(minimalContents(), false)
	require.ErrorIs(t, err, ErrLogFull)
}

func TestAppendEvictsOldestWhenFull(t *testing.T) {
	l := newLog(t, HeaderLen+record.MinRecordLen+EOFSentinelLen+1)
	_, err := l.AppendRecord(minimalContents(), false)
	require.NoError(t, err)

	_, err = l.AppendRecord(minimalContents(), true)
	require.NoError(t, err)

	all, err := l.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, uint32(2), all[0].RecordNumber)
	assert.Equal(t, uint32(2), l.Header().OldestRecordNumber)
	assert.Equal(t, 1, l.Evictions())
}

func TestSetLoggerLogsEachEviction(t *testing.T) {
	var buf bytes.Buffer
	l := newLog(t, HeaderLen+record.MinRecordLen+EOFSentinelLen+1)
	l.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := l.AppendRecord(minimalContents(), false)
	require.NoError(t, err)
	_, err = l.AppendRecord(minimalContents(), true)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "evicted oldest record")
	assert.Contains(t, buf.String(), "record_number=1")
}

func TestSplitWriteAcrossRingBoundary(t *testing.T) {
	l := newLog(t, 236)

	_, err := l.AppendRecord(minimalContents(), false) // record 1 (A)
	require.NoError(t, err)
	_, err = l.AppendRecord(minimalContents(), false) // record 2 (B)
	require.NoError(t, err)

	_, err = l.AppendRecord(minimalContents(), true) // record 3 (C), evicts A, splits
	require.NoError(t, err)

	assert.NotZero(t, l.Header().Flags&FlagWrap)
	assert.Equal(t, uint32(52), l.Header().EndOffset)
	assert.Equal(t, uint32(112), l.Header().StartOffset)

	all, err := l.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint32(2), all[0].RecordNumber)
	assert.Equal(t, uint32(3), all[1].RecordNumber)
}

func TestEvictCollapsesToEmptyAndClearsWrap(t *testing.T) {
	l := newLog(t, 236)
	_, err := l.AppendRecord(minimalContents(), false)
	require.NoError(t, err)
	_, err = l.AppendRecord(minimalContents(), false)
	require.NoError(t, err)
	_, err = l.AppendRecord(minimalContents(), true) // evicts record 1, wraps
	require.NoError(t, err)
	require.NotZero(t, l.Header().Flags&FlagWrap)

	require.NoError(t, l.Evict()) // evicts record 2
	require.NoError(t, l.Evict()) // evicts record 3, should collapse to empty

	h := l.Header()
	assert.Equal(t, h.StartOffset, h.EndOffset)
	assert.Equal(t, uint32(HeaderLen), h.StartOffset)
	assert.Zero(t, h.Flags&FlagWrap)
}

func TestOpenDetectsWrongSignature(t *testing.T) {
	m := ioabs.NewMemMedium(0)
	l, err := OpenCreate(m, HeaderLen+record.MinRecordLen+EOFSentinelLen+1)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	h := l.Header()
	h.Signature = 0xDEADBEEF
	require.NoError(t, m.Truncate(int64(h.MaxSize)))
	buf := encodeLogHeader(h)
	_, seekErr := m.Seek(0, ioabs.SeekSet)
	require.NoError(t, seekErr)
	_, writeErr := m.Write(buf)
	require.NoError(t, writeErr)

	_, errs, err := Open(m)
	require.Error(t, err)
	assert.NotZero(t, errs&ErrWrongSignature)
}

func TestOpenCreateMinimumSizeAcceptsZeroRecordsAndRejectsAppend(t *testing.T) {
	l := newLog(t, HeaderLen+EOFSentinelLen)

	all, err := l.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = l.AppendRecord(minimalContents(), false)
	require.ErrorIs(t, err, ErrLogFull)
}

func TestOpenCreateRejectsSizeBelowHeaderPlusSentinel(t *testing.T) {
	_, err := OpenCreate(ioabs.NewMemMedium(0), HeaderLen+EOFSentinelLen-1)
	require.Error(t, err)
}

func TestAppendReservesSentinelMarginInsteadOfOverflowing(t *testing.T) {
	// A log whose space after the header equals the record plus the
	// trailing sentinel exactly must refuse the write: the tail is only
	// used when it is strictly larger than record and sentinel together.
	l := newLog(t, HeaderLen+record.MinRecordLen+EOFSentinelLen)

	_, err := l.AppendRecord(minimalContents(), true)
	require.ErrorIs(t, err, ErrRecordTooLarge)
	assert.Equal(t, l.header.MaxSize, uint32(HeaderLen+record.MinRecordLen+EOFSentinelLen))
}

func TestSimulateWriteFitsInTail(t *testing.T) {
	newEnd, wraps, ok := simulateWrite(48, 48, 200, 64)
	require.True(t, ok)
	assert.False(t, wraps)
	assert.Equal(t, uint32(112), newEnd)
}

func TestSimulateWriteDeadZoneWraps(t *testing.T) {
	// Tail space of 10 bytes is below a record header (56): must skip
	// it entirely and wrap to HeaderLen.
	newEnd, wraps, ok := simulateWrite(120, 190, 200, 20)
	require.True(t, ok)
	assert.True(t, wraps)
	assert.Equal(t, uint32(68), newEnd)
}

func TestSimulateWriteSplitsAcrossBoundary(t *testing.T) {
	// Tail space 60 (>=56) but < size 64: splits 60/4 across the ring.
	newEnd, wraps, ok := simulateWrite(112, 176, 236, 64)
	require.True(t, ok)
	assert.True(t, wraps)
	assert.Equal(t, uint32(52), newEnd)
}

func TestSimulateWriteRejectsOverlapWithLiveRegion(t *testing.T) {
	_, _, ok := simulateWrite(48, 176, 236, 64)
	assert.False(t, ok)
}

func TestSimulateWriteAlreadyWrappedFreeSpan(t *testing.T) {
	// Free span [60,150) is 90 bytes: room for the 30-byte record and
	// the trailing 40-byte sentinel with slack to spare.
	newEnd, wraps, ok := simulateWrite(150, 60, 236, 30)
	require.True(t, ok)
	assert.False(t, wraps)
	assert.Equal(t, uint32(90), newEnd)
}

func TestSimulateWriteAlreadyWrappedRejectsWhenSentinelWouldNotFit(t *testing.T) {
	// Free span [60,100) is 40 bytes: the 30-byte record alone would
	// fit, but not with the 40-byte sentinel that must follow it.
	_, _, ok := simulateWrite(100, 60, 236, 30)
	assert.False(t, ok)
}

func TestAdvanceStartNormal(t *testing.T) {
	assert.Equal(t, uint32(112), advanceStart(48, 64, 236))
}

func TestAdvanceStartWrapsPastEnd(t *testing.T) {
	assert.Equal(t, uint32(68), advanceStart(200, 56, 236))
}
