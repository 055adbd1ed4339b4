// Package wchar converts between UTF-8 and the NUL-terminated
// UTF-16LE strings used throughout the on-disk record layout (spec
// §4.C), built on golang.org/x/text the way laenix-ewfgo decodes
// wide-character header fields in internal/ewf.go.
package wchar

import (
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var le16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ErrMalformed marks encode/decode failures caused by invalid UTF-8
// input or an unterminated/truncated UTF-16LE byte run.
var ErrMalformed = errors.New("wchar: malformed string")

// EncodeMBString converts a UTF-8 string to NUL-terminated UTF-16LE
// bytes and returns those bytes along with their length. The returned
// length includes the terminating NUL code unit, because on-disk
// fields are delimited by it (spec §4.C).
func EncodeMBString(s string) ([]byte, int, error) {
	if !utf8.ValidString(s) {
		return nil, 0, errors.Mark(errors.Newf("wchar: invalid UTF-8 in %q", s), ErrMalformed)
	}
	encoded, _, err := transform.Bytes(le16.NewEncoder(), []byte(s))
	if err != nil {
		return nil, 0, errors.Mark(errors.Wrapf(err, "wchar: encode %q", s), ErrMalformed)
	}
	out := make([]byte, 0, len(encoded)+2)
	out = append(out, encoded...)
	out = append(out, 0x00, 0x00)
	return out, len(out), nil
}

// DecodeWideString reads a NUL-terminated UTF-16LE string starting at
// the front of src, never reading past maxBytes. It returns the
// decoded UTF-8 text and the number of bytes consumed, including the
// terminating NUL pair.
func DecodeWideString(src []byte, maxBytes int) (string, int, error) {
	if maxBytes > len(src) {
		maxBytes = len(src)
	}
	limited := src[:maxBytes]

	consumed := -1
	for i := 0; i+1 < len(limited); i += 2 {
		if limited[i] == 0 && limited[i+1] == 0 {
			consumed = i + 2
			break
		}
	}
	if consumed < 0 {
		return "", 0, errors.Mark(errors.New("wchar: no NUL terminator within bound"), ErrMalformed)
	}

	payload := limited[:consumed-2]
	decoded, _, err := transform.Bytes(le16.NewDecoder(), payload)
	if err != nil {
		return "", 0, errors.Mark(errors.Wrap(err, "wchar: decode"), ErrMalformed)
	}
	return string(decoded), consumed, nil
}
