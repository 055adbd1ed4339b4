// Package sid converts between the textual Windows Security
// Identifier form ("S-1-5-32-544") and its packed binary layout
// (spec §4.D): revision(u8) subAuthorityCount(u8) authority(6 bytes
// big-endian) subAuthority[count](u32 little-endian).
package sid

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrSID marks every encode/decode failure this package returns.
var ErrSID = errors.New("sid: malformed SID")

const (
	maxAuthority = 1 << 48
	headerLen    = 2 + 6 // revision + subAuthorityCount + authority
)

// SID is the decoded form of a Security Identifier.
type SID struct {
	Revision      uint8
	Authority     uint64 // 48-bit value
	SubAuthority  []uint32
}

// ParseText parses "S-<revision>-<authority>(-<subauthority>)*" into a
// SID, failing on an out-of-range component or malformed prefix.
func ParseText(text string) (*SID, error) {
	parts := strings.Split(text, "-")
	if len(parts) < 3 || parts[0] != "S" {
		return nil, errors.Mark(errors.Newf("sid: malformed prefix %q", text), ErrSID)
	}

	revision, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "sid: bad revision in %q", text), ErrSID)
	}

	authority, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil || authority >= maxAuthority {
		return nil, errors.Mark(errors.Newf("sid: authority out of range in %q", text), ErrSID)
	}

	subs := make([]uint32, 0, len(parts)-3)
	for _, p := range parts[3:] {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "sid: bad sub-authority in %q", text), ErrSID)
		}
		subs = append(subs, uint32(v))
	}

	return &SID{Revision: uint8(revision), Authority: authority, SubAuthority: subs}, nil
}

// Text renders the SID back to its canonical "S-r-a-s1-s2-..." form.
func (s *SID) Text() string {
	var b strings.Builder
	b.WriteString("S-")
	b.WriteString(strconv.FormatUint(uint64(s.Revision), 10))
	b.WriteByte('-')
	b.WriteString(strconv.FormatUint(s.Authority, 10))
	for _, sub := range s.SubAuthority {
		b.WriteByte('-')
		b.WriteString(strconv.FormatUint(uint64(sub), 10))
	}
	return b.String()
}

// EncodeBinary serializes the SID to its on-disk packed layout.
func (s *SID) EncodeBinary() ([]byte, error) {
	if len(s.SubAuthority) > 0xFF {
		return nil, errors.Mark(errors.Newf("sid: too many sub-authorities (%d)", len(s.SubAuthority)), ErrSID)
	}
	if s.Authority >= maxAuthority {
		return nil, errors.Mark(errors.Newf("sid: authority %d out of 48-bit range", s.Authority), ErrSID)
	}

	out := make([]byte, headerLen+4*len(s.SubAuthority))
	out[0] = s.Revision
	out[1] = uint8(len(s.SubAuthority))

	// 48-bit authority, big-endian.
	var authBytes [8]byte
	binary.BigEndian.PutUint64(authBytes[:], s.Authority)
	copy(out[2:8], authBytes[2:8])

	for i, sub := range s.SubAuthority {
		binary.LittleEndian.PutUint32(out[headerLen+4*i:], sub)
	}
	return out, nil
}

// DecodeBinary parses the packed binary layout back into a SID,
// failing if buf is shorter than 2 + 6 + 4*count.
func DecodeBinary(buf []byte) (*SID, error) {
	if len(buf) < headerLen {
		return nil, errors.Mark(errors.Newf("sid: buffer too short (%d bytes)", len(buf)), ErrSID)
	}
	revision := buf[0]
	count := int(buf[1])

	want := headerLen + 4*count
	if len(buf) < want {
		return nil, errors.Mark(errors.Newf("sid: buffer too short for %d sub-authorities (have %d, want %d)", count, len(buf), want), ErrSID)
	}

	var authBytes [8]byte
	copy(authBytes[2:8], buf[2:8])
	authority := binary.BigEndian.Uint64(authBytes[:])

	subs := make([]uint32, count)
	for i := 0; i < count; i++ {
		subs[i] = binary.LittleEndian.Uint32(buf[headerLen+4*i:])
	}

	return &SID{Revision: revision, Authority: authority, SubAuthority: subs}, nil
}

// Len returns the encoded binary length of the SID.
func (s *SID) Len() int {
	return headerLen + 4*len(s.SubAuthority)
}
