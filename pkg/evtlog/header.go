package evtlog

import "encoding/binary"

// HeaderLen is the fixed size, in bytes, of LogHeader on disk (spec §3).
const HeaderLen = 48

// EOFSentinelLen is the fixed size, in bytes, of the EOF sentinel.
const EOFSentinelLen = 40

// Signature is the ELF file signature, "LfLe" read little-endian.
const Signature = 0x654c664c

const (
	versionMajor = 1
	versionMinor = 1
)

// Flag bits for LogHeader.Flags (spec §3).
const (
	FlagDirty          uint32 = 1 << 0
	FlagWrap           uint32 = 1 << 1
	FlagLogFullWritten uint32 = 1 << 2
	FlagArchiveSet     uint32 = 1 << 3
)

// LogHeader is the fixed 48-byte on-disk log header (spec §3).
type LogHeader struct {
	HeaderSize          uint32
	Signature           uint32
	MajorVersion        uint32
	MinorVersion        uint32
	StartOffset         uint32
	EndOffset           uint32
	CurrentRecordNumber uint32
	OldestRecordNumber  uint32
	MaxSize             uint32
	Flags               uint32
	Retention           uint32
	EndHeaderSize       uint32
}

func encodeLogHeader(h LogHeader) []byte {
	buf := make([]byte, HeaderLen)
	binary.LittleEndian.PutUint32(buf[0:4], h.HeaderSize)
	binary.LittleEndian.PutUint32(buf[4:8], h.Signature)
	binary.LittleEndian.PutUint32(buf[8:12], h.MajorVersion)
	binary.LittleEndian.PutUint32(buf[12:16], h.MinorVersion)
	binary.LittleEndian.PutUint32(buf[16:20], h.StartOffset)
	binary.LittleEndian.PutUint32(buf[20:24], h.EndOffset)
	binary.LittleEndian.PutUint32(buf[24:28], h.CurrentRecordNumber)
	binary.LittleEndian.PutUint32(buf[28:32], h.OldestRecordNumber)
	binary.LittleEndian.PutUint32(buf[32:36], h.MaxSize)
	binary.LittleEndian.PutUint32(buf[36:40], h.Flags)
	binary.LittleEndian.PutUint32(buf[40:44], h.Retention)
	binary.LittleEndian.PutUint32(buf[44:48], h.EndHeaderSize)
	return buf
}

func decodeLogHeader(buf []byte) LogHeader {
	return LogHeader{
		HeaderSize:          binary.LittleEndian.Uint32(buf[0:4]),
		Signature:           binary.LittleEndian.Uint32(buf[4:8]),
		MajorVersion:        binary.LittleEndian.Uint32(buf[8:12]),
		MinorVersion:        binary.LittleEndian.Uint32(buf[12:16]),
		StartOffset:         binary.LittleEndian.Uint32(buf[16:20]),
		EndOffset:           binary.LittleEndian.Uint32(buf[20:24]),
		CurrentRecordNumber: binary.LittleEndian.Uint32(buf[24:28]),
		OldestRecordNumber:  binary.LittleEndian.Uint32(buf[28:32]),
		MaxSize:             binary.LittleEndian.Uint32(buf[32:36]),
		Flags:               binary.LittleEndian.Uint32(buf[36:40]),
		Retention:           binary.LittleEndian.Uint32(buf[40:44]),
		EndHeaderSize:       binary.LittleEndian.Uint32(buf[44:48]),
	}
}

// eofSentinel is the 40-byte marker following the newest live record.
type eofSentinel struct {
	RecordSizeBeginning uint32
	Magic1              uint32
	Magic2              uint32
	Magic3              uint32
	Magic4              uint32
	BeginRecord         uint32
	EndRecord           uint32
	CurrentRecordNumber uint32
	OldestRecordNumber  uint32
	RecordSizeEnd       uint32
}

const (
	magic1 = 0x11111111
	magic2 = 0x22222222
	magic3 = 0x33333333
	magic4 = 0x44444444
)

func newSentinel(h LogHeader) eofSentinel {
	return eofSentinel{
		RecordSizeBeginning: EOFSentinelLen,
		Magic1:              magic1,
		Magic2:              magic2,
		Magic3:              magic3,
		Magic4:              magic4,
		BeginRecord:         h.StartOffset,
		EndRecord:           h.EndOffset,
		CurrentRecordNumber: h.CurrentRecordNumber,
		OldestRecordNumber:  h.OldestRecordNumber,
		RecordSizeEnd:       EOFSentinelLen,
	}
}

func encodeSentinel(s eofSentinel) []byte {
	buf := make([]byte, EOFSentinelLen)
	binary.LittleEndian.PutUint32(buf[0:4], s.RecordSizeBeginning)
	binary.LittleEndian.PutUint32(buf[4:8], s.Magic1)
	binary.LittleEndian.PutUint32(buf[8:12], s.Magic2)
	binary.LittleEndian.PutUint32(buf[12:16], s.Magic3)
	binary.LittleEndian.PutUint32(buf[16:20], s.Magic4)
	binary.LittleEndian.PutUint32(buf[20:24], s.BeginRecord)
	binary.LittleEndian.PutUint32(buf[24:28], s.EndRecord)
	binary.LittleEndian.PutUint32(buf[28:32], s.CurrentRecordNumber)
	binary.LittleEndian.PutUint32(buf[32:36], s.OldestRecordNumber)
	binary.LittleEndian.PutUint32(buf[36:40], s.RecordSizeEnd)
	return buf
}

func decodeSentinel(buf []byte) eofSentinel {
	return eofSentinel{
		RecordSizeBeginning: binary.LittleEndian.Uint32(buf[0:4]),
		Magic1:              binary.LittleEndian.Uint32(buf[4:8]),
		Magic2:              binary.LittleEndian.Uint32(buf[8:12]),
		Magic3:              binary.LittleEndian.Uint32(buf[12:16]),
		Magic4:              binary.LittleEndian.Uint32(buf[16:20]),
		BeginRecord:         binary.LittleEndian.Uint32(buf[20:24]),
		EndRecord:           binary.LittleEndian.Uint32(buf[24:28]),
		CurrentRecordNumber: binary.LittleEndian.Uint32(buf[28:32]),
		OldestRecordNumber:  binary.LittleEndian.Uint32(buf[32:36]),
		RecordSizeEnd:       binary.LittleEndian.Uint32(buf[36:40]),
	}
}

// SentinelInfo is the EOF sentinel's magic DWORDs and validity, for
// "elfconv inspect" (SPEC_FULL.md Supplemented Features) to print
// without the rest of eofSentinel's internal fields.
type SentinelInfo struct {
	Magic1, Magic2, Magic3, Magic4 uint32
	Valid                          bool
}

func (s eofSentinel) valid() bool {
	return s.RecordSizeBeginning == EOFSentinelLen &&
		s.Magic1 == magic1 && s.Magic2 == magic2 && s.Magic3 == magic3 && s.Magic4 == magic4 &&
		s.RecordSizeEnd == EOFSentinelLen
}

// HeaderErrors is a bitset of failures raised while opening a log
// (spec §4.H, §7).
type HeaderErrors uint8

const (
	ErrWrongLength HeaderErrors = 1 << iota
	ErrWrongSignature
	ErrWrongVersion
)

// String renders the set bits as a comma-joined list of names, "ok"
// if none are set. Used by "elfconv inspect" (SPEC_FULL.md
// Supplemented Features).
func (e HeaderErrors) String() string {
	if e == 0 {
		return "ok"
	}
	var names []string
	if e&ErrWrongLength != 0 {
		names = append(names, "wrong-length")
	}
	if e&ErrWrongSignature != 0 {
		names = append(names, "wrong-signature")
	}
	if e&ErrWrongVersion != 0 {
		names = append(names, "wrong-version")
	}
	out := names[0]
	for _, n := range names[1:] {
		out += "," + n
	}
	return out
}
