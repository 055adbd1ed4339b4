// Package evtlog implements the circular binary event-log engine
// (spec §4.H): a fixed-size ring of variable-length records framed by
// a 48-byte LogHeader and trailed by a 40-byte EOF sentinel. Grounded
// on the teacher's pkg/store/kv_store.go (Open/OpenCreate lifecycle
// and header validation), pkg/store/log_writer.go (sequential append
// with an in-memory offset cursor), and pkg/store/log_reader.go
// (ReadAt/iterator semantics), generalized from freyjadb's append-only
// log to a bounded, evicting ring over pkg/ioabs.Medium.
package evtlog

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/elfconv/pkg/ioabs"
	"github.com/ssargent/elfconv/pkg/record"
)

// ErrLogFull marks an AppendRecord that could not make room for a new
// record without eviction, and eviction was not requested.
var ErrLogFull = errors.New("evtlog: log is full")

// ErrRecordTooLarge marks a record that cannot fit even in a fully
// empty log of this MaxSize.
var ErrRecordTooLarge = errors.New("evtlog: record exceeds log capacity")

// ErrEndOfLog marks the end of the live record range during iteration.
var ErrEndOfLog = errors.New("evtlog: end of log")

// ErrCorrupt marks a header or sentinel that failed validation.
var ErrCorrupt = errors.New("evtlog: corrupt log")

// Log is an open circular event log. It is not safe for concurrent
// use; the format has no multi-writer story (spec §6 Non-goals).
type Log struct {
	medium    ioabs.Medium
	header    LogHeader
	logger    *slog.Logger // nil is valid: eviction telemetry is opt-in
	evictions int
}

// SetLogger attaches a structured logger AppendRecord/evictOldest use
// to report eviction telemetry (SPEC_FULL.md Supplemented Features).
// A nil logger (the default) disables this telemetry entirely.
func (l *Log) SetLogger(logger *slog.Logger) {
	l.logger = logger
}

// Evictions returns the number of records evicted since the log was
// opened, for callers that want to feed it into a metrics counter.
func (l *Log) Evictions() int {
	return l.evictions
}

func (l *Log) readAt(pos int64, buf []byte) error {
	if _, err := l.medium.Seek(pos, ioabs.SeekSet); err != nil {
		return err
	}
	if _, err := l.medium.Read(buf); err != nil {
		return err
	}
	return nil
}

func (l *Log) writeAt(pos int64, buf []byte) error {
	if _, err := l.medium.Seek(pos, ioabs.SeekSet); err != nil {
		return err
	}
	if _, err := l.medium.Write(buf); err != nil {
		return err
	}
	return nil
}

func (l *Log) flushHeader() error {
	return l.writeAt(0, encodeLogHeader(l.header))
}

func (l *Log) writeSentinel() error {
	s := newSentinel(l.header)
	return l.writeAt(int64(l.header.EndOffset), encodeSentinel(s))
}

// validateHeader checks the fixed fields a well-formed ELF header
// must carry (spec §7): file length, signature, and version.
func validateHeader(h LogHeader, mediumLen int64) HeaderErrors {
	var errs HeaderErrors
	if int64(h.MaxSize) != mediumLen {
		errs |= ErrWrongLength
	}
	if h.Signature != Signature {
		errs |= ErrWrongSignature
	}
	if h.MajorVersion != versionMajor || h.MinorVersion != versionMinor {
		errs |= ErrWrongVersion
	}
	return errs
}

// Open opens an existing log file, validating its header. A non-zero
// HeaderErrors return means the header failed one or more checks;
// unrecoverable headers are not repaired (spec §6 Non-goals).
func Open(medium ioabs.Medium) (*Log, HeaderErrors, error) {
	mediumLen, err := medium.Length()
	if err != nil {
		return nil, 0, err
	}
	buf := make([]byte, HeaderLen)
	if _, err := medium.Seek(0, ioabs.SeekSet); err != nil {
		return nil, 0, err
	}
	if _, err := medium.Read(buf); err != nil {
		return nil, 0, errors.Mark(errors.Wrap(err, "evtlog: read header"), ErrCorrupt)
	}
	h := decodeLogHeader(buf)
	errs := validateHeader(h, mediumLen)
	if errs != 0 {
		return nil, errs, errors.Mark(errors.Newf("evtlog: header failed validation %#x", errs), ErrCorrupt)
	}
	return &Log{medium: medium, header: h}, 0, nil
}

// ProbeHeader decodes and validates a log's header without requiring
// it to pass validation, for "elfconv inspect" (SPEC_FULL.md
// Supplemented Features) to report on logs Open would refuse to open.
func ProbeHeader(medium ioabs.Medium) (LogHeader, HeaderErrors, error) {
	mediumLen, err := medium.Length()
	if err != nil {
		return LogHeader{}, 0, err
	}
	buf := make([]byte, HeaderLen)
	if _, err := medium.Seek(0, ioabs.SeekSet); err != nil {
		return LogHeader{}, 0, err
	}
	if _, err := medium.Read(buf); err != nil {
		return LogHeader{}, 0, errors.Mark(errors.Wrap(err, "evtlog: read header"), ErrCorrupt)
	}
	h := decodeLogHeader(buf)
	return h, validateHeader(h, mediumLen), nil
}

// ProbeSentinel reads and decodes the EOF sentinel at endOffset
// without requiring it to be valid, for "elfconv inspect".
func ProbeSentinel(medium ioabs.Medium, endOffset uint32) (SentinelInfo, error) {
	buf := make([]byte, EOFSentinelLen)
	if _, err := medium.Seek(int64(endOffset), ioabs.SeekSet); err != nil {
		return SentinelInfo{}, err
	}
	if _, err := medium.Read(buf); err != nil {
		return SentinelInfo{}, errors.Mark(errors.Wrap(err, "evtlog: read sentinel"), ErrCorrupt)
	}
	s := decodeSentinel(buf)
	return SentinelInfo{Magic1: s.Magic1, Magic2: s.Magic2, Magic3: s.Magic3, Magic4: s.Magic4, Valid: s.valid()}, nil
}

// OpenCreate formats a new log of the given total size (including the
// 48-byte header) and opens it empty.
func OpenCreate(medium ioabs.Medium, size uint32) (*Log, error) {
	if size < HeaderLen+EOFSentinelLen {
		return nil, errors.Newf("evtlog: size %d too small for header plus EOF sentinel", size)
	}
	if err := medium.Truncate(int64(size)); err != nil {
		return nil, err
	}
	h := LogHeader{
		HeaderSize:          HeaderLen,
		Signature:           Signature,
		MajorVersion:        versionMajor,
		MinorVersion:        versionMinor,
		StartOffset:         HeaderLen,
		EndOffset:           HeaderLen,
		CurrentRecordNumber: 1,
		OldestRecordNumber:  0,
		MaxSize:             size,
		Flags:               FlagDirty,
		Retention:           0,
		EndHeaderSize:       HeaderLen,
	}
	l := &Log{medium: medium, header: h}
	if err := l.flushHeader(); err != nil {
		return nil, err
	}
	if err := l.writeSentinel(); err != nil {
		return nil, err
	}
	return l, nil
}

// Header returns a copy of the log's current in-memory header.
func (l *Log) Header() LogHeader { return l.header }

// Close clears the DIRTY flag, flushes the header, and releases the
// backing medium (spec §3/§8: a clean Close leaves DIRTY unset).
func (l *Log) Close() error {
	l.header.Flags &^= FlagDirty
	if err := l.flushHeader(); err != nil {
		_ = l.medium.Close()
		return err
	}
	return l.medium.Close()
}

// simulateWrite answers whether size bytes can be appended at end
// without evicting, given the ring's current bounds, and where the
// write would land. It never mutates state, which is what makes the
// "probe, then maybe evict, then actually write" sequence in
// AppendRecord safe to reason about (spec §4.H steps 2-6).
//
// Every candidate placement must also leave room for the trailing
// 40-byte EOF sentinel AppendRecord writes right after newEnd (spec
// §4.H step 2: "simulating a write of record.header.length bytes and
// a write of 40 (EOF sentinel) bytes"); size alone is not the whole
// footprint being reserved.
//
// The tail dead-zone rule: a residual tail that holds the whole
// record but leaves no room for the sentinel after it, or that is too
// short even for a record header, is abandoned entirely (the record
// and its sentinel both move to the front); a tail that holds neither
// the whole record nor a dead zone's worth splits the record across
// the boundary instead.
//
// A write that would land exactly on start is rejected even when the
// ring is currently empty (start == end): allowing it would leave the
// ring edge-to-edge full yet numerically indistinguishable from
// empty, since the format carries no separate full/empty bit. The
// ring's effective capacity is therefore its size minus a handful of
// bytes, never the full MaxSize-HeaderLen span.
func simulateWrite(start, end, maxSize, size uint32) (newEnd uint32, wraps bool, ok bool) {
	if start > end {
		// Already wrapped: the only free region is the single span
		// [end, start), with MaxSize no longer relevant.
		newEnd = end + size
		if newEnd+EOFSentinelLen >= start {
			return 0, false, false
		}
		return newEnd, false, true
	}

	// Not yet wrapped: free space is [end, maxSize) and, once that
	// tail is exhausted, [HeaderLen, start). The tail can only be used
	// in place if it holds the record AND the sentinel that follows it.
	tailSpace := maxSize - end
	if tailSpace > size+EOFSentinelLen {
		return end + size, false, true
	}

	if tailSpace >= size || tailSpace < record.HeaderLen {
		newEnd = HeaderLen + size
	} else {
		newEnd = HeaderLen + (size - tailSpace)
	}
	if newEnd+EOFSentinelLen >= start {
		return 0, false, false
	}
	return newEnd, true, true
}

// advanceStart computes the new StartOffset after evicting a record
// of firstLen bytes currently at start. When the record straddled the
// end of the ring, the correction lands the new start just past the
// header region by the amount the record overran (headerSize +
// |endSpace|), rather than past the nominal, off-the-end offset.
func advanceStart(start, firstLen, maxSize uint32) uint32 {
	next := start + firstLen
	if next >= maxSize {
		return HeaderLen + (next - maxSize)
	}
	return next
}

func (l *Log) isEmpty() bool {
	return l.header.StartOffset == l.header.EndOffset
}

// evictOldest deletes the single oldest live record, advancing
// StartOffset and OldestRecordNumber. Collapsing to an empty log
// resets both offsets to HeaderLen, sets OldestRecordNumber to 0 and
// clears the WRAP flag.
func (l *Log) evictOldest() error {
	if l.isEmpty() {
		return errors.New("evtlog: cannot evict from an empty log")
	}
	hdrBuf := make([]byte, record.HeaderLen)
	if err := l.readAt(int64(l.header.StartOffset), hdrBuf); err != nil {
		return err
	}
	rh, err := record.DecodeHeader(hdrBuf)
	if err != nil {
		return errors.Mark(err, ErrCorrupt)
	}

	newStart := advanceStart(l.header.StartOffset, rh.Length, l.header.MaxSize)
	l.header.StartOffset = newStart
	l.evictions++

	if l.logger != nil {
		l.logger.Info("evtlog: evicted oldest record",
			slog.Uint64("record_number", uint64(rh.RecordNumber)),
			slog.Uint64("bytes_reclaimed", uint64(rh.Length)))
	}

	if newStart == l.header.EndOffset {
		l.header.StartOffset = HeaderLen
		l.header.EndOffset = HeaderLen
		l.header.OldestRecordNumber = 0
		l.header.Flags &^= FlagWrap
		return nil
	}

	nextHdrBuf := make([]byte, record.HeaderLen)
	if err := l.readAt(int64(newStart), nextHdrBuf); err != nil {
		return err
	}
	nrh, err := record.DecodeHeader(nextHdrBuf)
	if err != nil {
		return errors.Mark(err, ErrCorrupt)
	}
	l.header.OldestRecordNumber = nrh.RecordNumber
	return nil
}

// Evict deletes the single oldest live record. It is exported so
// callers can drive eviction without going through AppendRecord.
func (l *Log) Evict() error {
	if err := l.evictOldest(); err != nil {
		return err
	}
	return l.flushHeader()
}

// AppendRecord assigns c the next sequential record number, encodes
// it, and writes it into the ring. When allowEvict is false, a full
// log fails with ErrLogFull instead of evicting (spec §4.H step 2).
func (l *Log) AppendRecord(c *record.Contents, allowEvict bool) (*record.Data, error) {
	c.RecordNumber = l.header.CurrentRecordNumber
	data, encErrs, err := record.Encode(c)
	if err != nil {
		return nil, errors.Wrapf(err, "evtlog: encode record %#x", encErrs)
	}
	size := data.Header.Length

	newEnd, wraps, ok := simulateWrite(l.header.StartOffset, l.header.EndOffset, l.header.MaxSize, size)
	for !ok {
		if !allowEvict {
			return nil, ErrLogFull
		}
		if l.isEmpty() {
			return nil, errors.Mark(errors.New("evtlog: record does not fit even in an empty log"), ErrRecordTooLarge)
		}
		if err := l.evictOldest(); err != nil {
			return nil, err
		}
		newEnd, wraps, ok = simulateWrite(l.header.StartOffset, l.header.EndOffset, l.header.MaxSize, size)
	}

	full := append(record.EncodeHeader(data.Header), data.Raw...)
	wasEmpty := l.isEmpty()

	if !wraps {
		if err := l.writeAt(int64(l.header.EndOffset), full); err != nil {
			return nil, err
		}
	} else {
		tailSpace := l.header.MaxSize - l.header.EndOffset
		if tailSpace > 0 {
			if err := l.writeAt(int64(l.header.EndOffset), full[:tailSpace]); err != nil {
				return nil, err
			}
		}
		if err := l.writeAt(int64(HeaderLen), full[tailSpace:]); err != nil {
			return nil, err
		}
		l.header.Flags |= FlagWrap
	}

	l.header.EndOffset = newEnd
	l.header.CurrentRecordNumber = c.RecordNumber + 1
	if wasEmpty {
		l.header.OldestRecordNumber = c.RecordNumber
	}
	if newEnd > l.header.MaxSize-record.MinRecordLen {
		l.header.Flags |= FlagLogFullWritten
	}
	l.header.Flags |= FlagDirty

	if err := l.writeSentinel(); err != nil {
		return nil, err
	}
	if err := l.flushHeader(); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadRecordAt decodes the single record beginning at pos, returning
// the offset of the next record so callers can iterate. A record
// whose payload crosses the end of the ring is reassembled from its
// tail slice and its continuation at HeaderLen, mirroring how
// AppendRecord split it on the way in.
func (l *Log) ReadRecordAt(pos uint32) (*record.Contents, uint32, error) {
	hdrBuf := make([]byte, record.HeaderLen)
	if err := l.readAt(int64(pos), hdrBuf); err != nil {
		return nil, 0, err
	}
	rh, err := record.DecodeHeader(hdrBuf)
	if err != nil {
		return nil, 0, errors.Mark(err, ErrCorrupt)
	}
	if rh.Length < record.MinRecordLen {
		return nil, 0, errors.Mark(errors.Newf("evtlog: record at %d has invalid length %d", pos, rh.Length), ErrCorrupt)
	}

	payloadLen := int(rh.Length) - record.HeaderLen
	payload := make([]byte, payloadLen)
	tailAvail := int(l.header.MaxSize) - (int(pos) + record.HeaderLen)
	if tailAvail < 0 {
		tailAvail = 0
	}

	if tailAvail >= payloadLen {
		if err := l.readAt(int64(pos)+record.HeaderLen, payload); err != nil {
			return nil, 0, err
		}
	} else {
		if tailAvail > 0 {
			if err := l.readAt(int64(pos)+record.HeaderLen, payload[:tailAvail]); err != nil {
				return nil, 0, err
			}
		}
		if err := l.readAt(int64(HeaderLen), payload[tailAvail:]); err != nil {
			return nil, 0, err
		}
	}

	c, decErrs, err := record.Decode(rh, payload)
	if err != nil {
		return c, 0, errors.Wrapf(err, "evtlog: decode record %#x", decErrs)
	}
	next := advanceStart(pos, rh.Length, l.header.MaxSize)
	return c, next, nil
}

// ReadRecord reads the oldest live record (at StartOffset).
func (l *Log) ReadRecord() (*record.Contents, error) {
	if l.isEmpty() {
		return nil, ErrEndOfLog
	}
	c, _, err := l.ReadRecordAt(l.header.StartOffset)
	return c, err
}

// ReadAll decodes every live record from oldest to newest.
func (l *Log) ReadAll() ([]*record.Contents, error) {
	var out []*record.Contents
	if l.isEmpty() {
		return out, nil
	}
	pos := l.header.StartOffset
	for {
		c, next, err := l.ReadRecordAt(pos)
		if err != nil {
			return out, err
		}
		out = append(out, c)
		if next == l.header.EndOffset {
			return out, nil
		}
		pos = next
	}
}
