// Package record implements the EvtRecordContents <-> EvtRecordData
// codec (spec §4.G, §3): a logical record (UTF-8 strings, textual SID,
// opaque blob, two timestamps) encoded into the on-disk record layout
// (UTF-16LE strings, binary SID, DWORD-aligned sections, a length
// header and matching trailer), and decoded back. Grounded on the
// teacher's pkg/codec/record.go shape (a Record struct plus a codec
// type with Encode/Decode/Validate), generalized to this richer
// on-disk layout.
package record

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/elfconv/pkg/bytebuf"
	"github.com/ssargent/elfconv/pkg/sid"
	"github.com/ssargent/elfconv/pkg/wchar"
)

// HeaderLen is the fixed size, in bytes, of RecordHeader on disk.
const HeaderLen = 56

// MinRecordLen is the smallest length a valid on-disk record may
// declare: the 56-byte header plus two empty NUL-terminated names
// (4 bytes) plus the 4-byte trailing length.
const MinRecordLen = 64

// Signature is written into RecordHeader.Reserved, matching the ELF
// file signature (spec §3).
const Signature = 0x654c664c

// Header is the fixed 56-byte on-disk record header (spec §3).
type Header struct {
	Length               uint32
	Reserved             uint32
	RecordNumber         uint32
	TimeGenerated        uint32
	TimeWritten          uint32
	EventID              uint32
	EventType            uint16
	NumStrings           uint16
	EventCategory        uint16
	ReservedFlags        uint16
	ClosingRecordNumber  uint32
	StringOffset         uint32
	UserSidLength        uint32
	UserSidOffset        uint32
	DataLength           uint32
	DataOffset           uint32
}

// EncodeHeader marshals h to its 56-byte little-endian layout.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.LittleEndian.PutUint32(buf[0:4], h.Length)
	binary.LittleEndian.PutUint32(buf[4:8], h.Reserved)
	binary.LittleEndian.PutUint32(buf[8:12], h.RecordNumber)
	binary.LittleEndian.PutUint32(buf[12:16], h.TimeGenerated)
	binary.LittleEndian.PutUint32(buf[16:20], h.TimeWritten)
	binary.LittleEndian.PutUint32(buf[20:24], h.EventID)
	binary.LittleEndian.PutUint16(buf[24:26], h.EventType)
	binary.LittleEndian.PutUint16(buf[26:28], h.NumStrings)
	binary.LittleEndian.PutUint16(buf[28:30], h.EventCategory)
	binary.LittleEndian.PutUint16(buf[30:32], h.ReservedFlags)
	binary.LittleEndian.PutUint32(buf[32:36], h.ClosingRecordNumber)
	binary.LittleEndian.PutUint32(buf[36:40], h.StringOffset)
	binary.LittleEndian.PutUint32(buf[40:44], h.UserSidLength)
	binary.LittleEndian.PutUint32(buf[44:48], h.UserSidOffset)
	binary.LittleEndian.PutUint32(buf[48:52], h.DataLength)
	binary.LittleEndian.PutUint32(buf[52:56], h.DataOffset)
	return buf
}

// ErrHeaderShort marks a header buffer shorter than HeaderLen.
var ErrHeaderShort = errors.New("record: header buffer too short")

// DecodeHeader parses a 56-byte buffer into a Header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, errors.Mark(errors.Newf("record: header needs %d bytes, got %d", HeaderLen, len(buf)), ErrHeaderShort)
	}
	return Header{
		Length:              binary.LittleEndian.Uint32(buf[0:4]),
		Reserved:            binary.LittleEndian.Uint32(buf[4:8]),
		RecordNumber:        binary.LittleEndian.Uint32(buf[8:12]),
		TimeGenerated:       binary.LittleEndian.Uint32(buf[12:16]),
		TimeWritten:         binary.LittleEndian.Uint32(buf[16:20]),
		EventID:             binary.LittleEndian.Uint32(buf[20:24]),
		EventType:           binary.LittleEndian.Uint16(buf[24:26]),
		NumStrings:          binary.LittleEndian.Uint16(buf[26:28]),
		EventCategory:       binary.LittleEndian.Uint16(buf[28:30]),
		ReservedFlags:       binary.LittleEndian.Uint16(buf[30:32]),
		ClosingRecordNumber: binary.LittleEndian.Uint32(buf[32:36]),
		StringOffset:        binary.LittleEndian.Uint32(buf[36:40]),
		UserSidLength:       binary.LittleEndian.Uint32(buf[40:44]),
		UserSidOffset:       binary.LittleEndian.Uint32(buf[44:48]),
		DataLength:          binary.LittleEndian.Uint32(buf[48:52]),
		DataOffset:          binary.LittleEndian.Uint32(buf[52:56]),
	}, nil
}

// Contents is the logical record (EvtRecordContents, spec §3):
// owns its own buffers and is released after being consumed.
type Contents struct {
	RecordNumber        uint32
	TimeGenerated        int64 // UTC seconds since 1970-01-01
	TimeWritten          int64
	EventID              uint32
	EventType            uint16
	EventCategory        uint16
	ClosingRecordNumber  uint32
	Strings              []string
	SID                  *sid.SID // nil when absent
	SourceName           string
	ComputerName         string
	Data                 []byte
}

// Data is the encoded on-disk record (EvtRecordData): a header plus
// the raw payload bytes that immediately follow it, including the
// trailing length DWORD. Raw does not include the header bytes.
type Data struct {
	Header Header
	Raw    []byte
}

// EncodeErrors is a bitset of failures raised while encoding a
// record's fields (spec §4.G step 2-4, §7).
type EncodeErrors uint8

const (
	EncSourceNameFailed EncodeErrors = 1 << iota
	EncComputerNameFailed
	EncSIDFailed
	EncStringsFailed
)

// ErrEncodeFailed marks an Encode failure; the caller inspects the
// returned EncodeErrors bitset for which field(s) failed.
var ErrEncodeFailed = errors.New("record: encode failed")

// clampUnixSeconds clamps a signed 64-bit UNIX-seconds value into the
// unsigned 32-bit range the on-disk format uses, silently, matching
// the documented Y2038 behavior (spec §9 Open Questions).
func clampUnixSeconds(t int64) uint32 {
	if t < 0 {
		return 0
	}
	if t > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(t)
}

// Encode serializes c into its on-disk Data form.
func Encode(c *Contents) (*Data, EncodeErrors, error) {
	var errs EncodeErrors
	buf := bytebuf.New(128)

	srcBytes, _, err := wchar.EncodeMBString(c.SourceName)
	if err != nil {
		errs |= EncSourceNameFailed
	} else {
		buf.Append(srcBytes, 0)
	}

	cmpBytes, _, err := wchar.EncodeMBString(c.ComputerName)
	if err != nil {
		errs |= EncComputerNameFailed
	} else {
		buf.Append(cmpBytes, 0)
	}

	var userSidLen, userSidOff uint32
	if c.SID != nil {
		sidBytes, err := c.SID.EncodeBinary()
		if err != nil {
			errs |= EncSIDFailed
		} else {
			off := buf.Append(sidBytes, 4)
			userSidOff = HeaderLen + uint32(off)
			userSidLen = uint32(len(sidBytes))
		}
	}

	stringOffset := HeaderLen + uint32(buf.Len())
	for _, s := range c.Strings {
		sb, _, err := wchar.EncodeMBString(s)
		if err != nil {
			errs |= EncStringsFailed
			break
		}
		buf.Append(sb, 0)
	}

	if errs != 0 {
		return nil, errs, errors.Mark(errors.Newf("record: encode failed with flags %#x", errs), ErrEncodeFailed)
	}

	dataOffset := HeaderLen + uint32(buf.Len())
	buf.Append(c.Data, 0)

	payloadLen := buf.Len()
	total := ((HeaderLen + payloadLen + 4 + 3) / 4) * 4
	padLen := total - (HeaderLen + payloadLen) - 4
	buf.AppendNull(padLen, 0)

	trailer := make([]byte, 4)
	binary.LittleEndian.PutUint32(trailer, uint32(total))
	buf.Append(trailer, 0)

	h := Header{
		Length:              uint32(total),
		Reserved:            Signature,
		RecordNumber:        c.RecordNumber,
		TimeGenerated:       clampUnixSeconds(c.TimeGenerated),
		TimeWritten:         clampUnixSeconds(c.TimeWritten),
		EventID:             c.EventID,
		EventType:           c.EventType,
		NumStrings:          uint16(len(c.Strings)),
		EventCategory:       c.EventCategory,
		ClosingRecordNumber: c.ClosingRecordNumber,
		StringOffset:        stringOffset,
		UserSidLength:       userSidLen,
		UserSidOffset:       userSidOff,
		DataLength:          uint32(len(c.Data)),
		DataOffset:          dataOffset,
	}

	return &Data{Header: h, Raw: append([]byte{}, buf.Bytes()...)}, 0, nil
}

// DecodeErrors is a bitset of failures raised while decoding a
// record's fields (spec §4.G, §7). A record that fails still yields
// every field that decoded successfully.
type DecodeErrors uint16

const (
	DecInvalid DecodeErrors = 1 << iota
	DecSourceNameFailed
	DecComputerNameFailed
	DecStringsFailed
	DecSIDOverflow
	DecSIDFailed
	DecDataOverflow
	DecLengthMismatch
)

// ErrDecodeFailed marks a Decode failure; inspect the returned
// DecodeErrors bitset for which checks failed.
var ErrDecodeFailed = errors.New("record: decode failed")

// Decode reconstructs Contents from a header and its raw payload
// (header.Length - HeaderLen bytes, including the trailing length).
func Decode(h Header, payload []byte) (*Contents, DecodeErrors, error) {
	var errs DecodeErrors
	c := &Contents{
		RecordNumber:        h.RecordNumber,
		TimeGenerated:       int64(h.TimeGenerated),
		TimeWritten:         int64(h.TimeWritten),
		EventID:             h.EventID,
		EventType:           h.EventType,
		EventCategory:       h.EventCategory,
		ClosingRecordNumber: h.ClosingRecordNumber,
	}

	if h.Length < MinRecordLen {
		return c, DecInvalid, errors.Mark(errors.Newf("record: length %d below minimum %d", h.Length, MinRecordLen), ErrDecodeFailed)
	}

	srcName, srcConsumed, err := wchar.DecodeWideString(payload, len(payload))
	if err != nil {
		errs |= DecSourceNameFailed
		srcConsumed = 0
	} else {
		c.SourceName = srcName
	}

	if srcConsumed <= len(payload) {
		cmpName, _, err := wchar.DecodeWideString(payload[srcConsumed:], len(payload)-srcConsumed)
		if err != nil {
			errs |= DecComputerNameFailed
		} else {
			c.ComputerName = cmpName
		}
	}

	if h.NumStrings > 0 {
		base := int(h.StringOffset) - HeaderLen
		if base >= 0 && base <= len(payload) {
			offset := base
			for i := uint16(0); i < h.NumStrings; i++ {
				s, consumed, err := wchar.DecodeWideString(payload[offset:], len(payload)-offset)
				if err != nil {
					errs |= DecStringsFailed
					break
				}
				c.Strings = append(c.Strings, s)
				offset += consumed
			}
		} else {
			errs |= DecStringsFailed
		}
	}

	payloadLimit := len(payload) - 4 // trailing length DWORD is not part of SID/data
	if h.UserSidLength > 0 {
		start := int(h.UserSidOffset) - HeaderLen
		end := start + int(h.UserSidLength)
		if start < 0 || end > payloadLimit {
			errs |= DecSIDOverflow
		} else {
			s, err := sid.DecodeBinary(payload[start:end])
			if err != nil {
				errs |= DecSIDFailed
			} else {
				c.SID = s
			}
		}
	}

	if h.DataLength > 0 {
		start := int(h.DataOffset) - HeaderLen
		end := start + int(h.DataLength)
		if start < 0 || end > payloadLimit {
			errs |= DecDataOverflow
		} else {
			c.Data = append([]byte{}, payload[start:end]...)
		}
	}

	if len(payload) >= 4 {
		trailer := binary.LittleEndian.Uint32(payload[len(payload)-4:])
		if trailer != h.Length {
			errs |= DecLengthMismatch
		}
	} else {
		errs |= DecLengthMismatch
	}

	if errs != 0 {
		return c, errs, errors.Mark(errors.Newf("record: decode failed with flags %#x", errs), ErrDecodeFailed)
	}
	return c, 0, nil
}
