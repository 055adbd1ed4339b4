// Package ioabs provides a uniform, seekable, length-known,
// truncatable byte medium abstraction for the log engine (spec §4.A).
// The log engine is parameterized over Medium rather than *os.File
// directly so a single-process in-memory fake can stand in for tests,
// the same role the teacher's store tests fill with temp files.
package ioabs

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// Whence mirrors io.Seek* without importing the numeric constants
// directly into call sites, matching the log engine's {SET,CUR,END}
// vocabulary from spec §4.A.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// Medium is the capability set the log engine requires of its
// backing storage: sequential/positional read and write, a current
// offset, a known length, and truncation.
type Medium interface {
	Read(buf []byte) (n int, err error)
	Write(buf []byte) (n int, err error)
	Tell() (int64, error)
	Seek(offset int64, whence Whence) (int64, error)
	Length() (int64, error)
	Truncate(newLen int64) error
	Close() error
}

// ErrIO marks any short-read/short-write/system failure against a
// Medium, letting callers distinguish medium failures from format
// failures with errors.Is(err, ErrIO).
var ErrIO = errors.New("ioabs: io error")

// FileMedium adapts a regular, seekable *os.File to Medium. OpenFile
// refuses a path that is not a regular file; evtlog.Open/OpenCreate
// do not check this themselves.
type FileMedium struct {
	f *os.File
}

// OpenFile opens an existing regular file for read/write use as a
// Medium.
func OpenFile(path string) (*FileMedium, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "ioabs: open %q", path)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Mark(errors.Wrapf(err, "ioabs: stat %q", path), ErrIO)
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, errors.Newf("ioabs: %q is not a regular file", path)
	}
	return &FileMedium{f: f}, nil
}

// CreateFile creates (or truncates) a file for use as a Medium.
func CreateFile(path string) (*FileMedium, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "ioabs: create %q", path)
	}
	return &FileMedium{f: f}, nil
}

func (m *FileMedium) Read(buf []byte) (int, error) {
	n, err := io.ReadFull(m.f, buf)
	if err != nil {
		return n, errors.Mark(errors.Wrap(err, "ioabs: short read"), ErrIO)
	}
	return n, nil
}

func (m *FileMedium) Write(buf []byte) (int, error) {
	n, err := m.f.Write(buf)
	if err != nil {
		return n, errors.Mark(errors.Wrap(err, "ioabs: write failed"), ErrIO)
	}
	if n != len(buf) {
		return n, errors.Mark(errors.Newf("ioabs: short write %d of %d", n, len(buf)), ErrIO)
	}
	return n, nil
}

func (m *FileMedium) Tell() (int64, error) {
	off, err := m.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "ioabs: tell failed"), ErrIO)
	}
	return off, nil
}

func (m *FileMedium) Seek(offset int64, whence Whence) (int64, error) {
	off, err := m.f.Seek(offset, toStdWhence(whence))
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "ioabs: seek failed"), ErrIO)
	}
	return off, nil
}

func (m *FileMedium) Length() (int64, error) {
	fi, err := m.f.Stat()
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "ioabs: stat failed"), ErrIO)
	}
	return fi.Size(), nil
}

func (m *FileMedium) Truncate(newLen int64) error {
	if err := m.f.Truncate(newLen); err != nil {
		return errors.Mark(errors.Wrap(err, "ioabs: truncate failed"), ErrIO)
	}
	return nil
}

func (m *FileMedium) Close() error {
	return m.f.Close()
}

func toStdWhence(w Whence) int {
	switch w {
	case SeekCur:
		return io.SeekCurrent
	case SeekEnd:
		return io.SeekEnd
	default:
		return io.SeekStart
	}
}

// MemMedium is an in-process, []byte-backed Medium for tests that
// should not touch the filesystem.
type MemMedium struct {
	buf []byte
	pos int64
}

// NewMemMedium returns a MemMedium with an initial zeroed length.
func NewMemMedium(size int64) *MemMedium {
	return &MemMedium{buf: make([]byte, size)}
}

func (m *MemMedium) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, errors.Mark(errors.New("ioabs: read past end"), ErrIO)
	}
	n := copy(p, m.buf[m.pos:])
	if n < len(p) {
		m.pos += int64(n)
		return n, errors.Mark(errors.New("ioabs: short read"), ErrIO)
	}
	m.pos += int64(n)
	return n, nil
}

func (m *MemMedium) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *MemMedium) Tell() (int64, error) { return m.pos, nil }

func (m *MemMedium) Seek(offset int64, whence Whence) (int64, error) {
	var base int64
	switch whence {
	case SeekCur:
		base = m.pos
	case SeekEnd:
		base = int64(len(m.buf))
	default:
		base = 0
	}
	next := base + offset
	if next < 0 {
		return 0, errors.Mark(errors.New("ioabs: negative seek"), ErrIO)
	}
	m.pos = next
	return m.pos, nil
}

func (m *MemMedium) Length() (int64, error) { return int64(len(m.buf)), nil }

func (m *MemMedium) Truncate(newLen int64) error {
	if newLen <= int64(len(m.buf)) {
		m.buf = m.buf[:newLen]
		return nil
	}
	grown := make([]byte, newLen)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

func (m *MemMedium) Close() error { return nil }
