package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SectionType identifies one typed subsection of a save blob, per
// spec.md §6.4.
type SectionType uint16

const (
	SectionFriends       SectionType = 1
	SectionOldFriends    SectionType = 2
	SectionName          SectionType = 3
	SectionStatusMessage SectionType = 4
	SectionStatus        SectionType = 5
	SectionTCPRelay      SectionType = 6
)

// sectionCookie is written into every section header; this module never
// validates it beyond round-tripping it, matching the original's use of
// the cookie as a forward-compatibility marker rather than a checksum.
const sectionCookie = 0x15ed1e7a

// Section is one decoded {type, bytes} pair from a save blob.
type Section struct {
	Type SectionType
	Data []byte
}

// writeSection appends one {type:u16, len:u32, cookie:u32, bytes} record.
func writeSection(buf *bytes.Buffer, t SectionType, data []byte) {
	var hdr [10]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(t))
	binary.BigEndian.PutUint32(hdr[2:6], uint32(len(data)))
	binary.BigEndian.PutUint32(hdr[6:10], sectionCookie)
	buf.Write(hdr[:])
	buf.Write(data)
}

// ParseSections splits a save blob into its typed sections, in file
// order. Returns ErrTruncated if a header or its body runs past the end
// of the input.
func ParseSections(raw []byte) ([]Section, error) {
	var out []Section
	for len(raw) > 0 {
		if len(raw) < 10 {
			return nil, ErrTruncated
		}
		t := SectionType(binary.BigEndian.Uint16(raw[0:2]))
		length := binary.BigEndian.Uint32(raw[2:6])
		raw = raw[10:]
		if uint64(len(raw)) < uint64(length) {
			return nil, ErrTruncated
		}
		out = append(out, Section{Type: t, Data: raw[:length]})
		raw = raw[length:]
	}
	return out, nil
}

// fixedString writes s into a fixed-size field, truncating if too long,
// padding with zero bytes otherwise, and returns the length actually
// written.
func fixedString(dst []byte, s string) uint16 {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return uint16(n)
}

func errShortSection(name string, need, got int) error {
	return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncated, name, need, got)
}
