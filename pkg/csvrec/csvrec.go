// Package csvrec implements the CSV tokenizer and writer spec §4.E
// requires: a reader state machine with NORMAL/INQUOTES states and
// exact end-of-record handling (CRLF, bare CR, bare LF, or EOF), and a
// writer that quotes a field only when it contains a comma, quote, CR,
// LF, or is empty.
package csvrec

import (
	"bufio"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

type readerState int

const (
	stateNormal readerState = iota
	stateInQuotes
)

// Reader tokenizes CSV rows from an io.Reader one row at a time.
type Reader struct {
	src   *bufio.Reader
	state readerState
	eof   bool
}

// NewReader wraps src as a row-oriented CSV reader.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: bufio.NewReader(src)}
}

// ErrDone marks the terminal EOF returned once the final row
// (including a final row with no trailing newline) has been emitted.
var ErrDone = errors.New("csvrec: no more rows")

// ReadRow reads and returns the next row's fields. It returns
// (nil, ErrDone) once every row, including a final unterminated row,
// has already been returned.
func (r *Reader) ReadRow() ([]string, error) {
	if r.eof {
		return nil, ErrDone
	}

	var fields []string
	var field strings.Builder
	r.state = stateNormal
	sawAny := false

	for {
		b, err := r.src.ReadByte()
		if err != nil {
			if err != io.EOF {
				return nil, errors.Wrap(err, "csvrec: read failed")
			}
			// EOF: emit the field in progress (even if empty, as long
			// as we have seen at least one byte or field in this row)
			// and terminate the stream after this row.
			r.eof = true
			if !sawAny && field.Len() == 0 && len(fields) == 0 {
				return nil, ErrDone
			}
			fields = append(fields, field.String())
			return fields, nil
		}
		sawAny = true

		switch r.state {
		case stateInQuotes:
			if b == '"' {
				next, peekErr := r.src.ReadByte()
				if peekErr == nil && next == '"' {
					field.WriteByte('"')
					continue
				}
				if peekErr == nil {
					_ = r.src.UnreadByte()
				}
				r.state = stateNormal
				continue
			}
			field.WriteByte(b)

		case stateNormal:
			switch b {
			case ',':
				fields = append(fields, field.String())
				field.Reset()
			case '"':
				r.state = stateInQuotes
			case '\r':
				next, peekErr := r.src.ReadByte()
				if peekErr == nil && next != '\n' {
					_ = r.src.UnreadByte()
				}
				fields = append(fields, field.String())
				return fields, nil
			case '\n':
				fields = append(fields, field.String())
				return fields, nil
			default:
				field.WriteByte(b)
			}
		}
	}
}

// Writer emits CSV rows, quoting a field only when required.
type Writer struct {
	dst io.Writer
}

// NewWriter wraps dst as a row-oriented CSV writer.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// WriteRow writes one row terminated by a bare line feed.
func (w *Writer) WriteRow(fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if _, err := io.WriteString(w.dst, ","); err != nil {
				return errors.Wrap(err, "csvrec: write failed")
			}
		}
		if _, err := io.WriteString(w.dst, quoteIfNeeded(f)); err != nil {
			return errors.Wrap(err, "csvrec: write failed")
		}
	}
	_, err := io.WriteString(w.dst, "\n")
	if err != nil {
		return errors.Wrap(err, "csvrec: write failed")
	}
	return nil
}

func needsQuoting(f string) bool {
	return f == "" || strings.ContainsAny(f, ",\"\r\n")
}

func quoteIfNeeded(f string) string {
	if !needsQuoting(f) {
		return f
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(f); i++ {
		if f[i] == '"' {
			b.WriteByte('"')
		}
		b.WriteByte(f[i])
	}
	b.WriteByte('"')
	return b.String()
}
