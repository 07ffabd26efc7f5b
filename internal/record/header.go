package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Header is the fixed 1024-byte region at the start of every archive.
//
// Layout (big-endian):
//
//	magic[8] major:u16 minor:u16 type:i8 role:i8 use:i8
//	id[16] owner[16] domain[16] node[16]
//	created:u64 title[128] entries:u32 pad[805]
type Header struct {
	Major   uint16
	Minor   uint16
	Type    int8
	Role    int8
	Use     int8
	ID      uuid.UUID
	Owner   uuid.UUID
	Domain  uuid.UUID
	Node    uuid.UUID
	Created time.Time
	Title   string
	Entries uint32
}

// NewHeader returns a version 1.0 header with a fresh random id and the
// creation time set to now.
func NewHeader() Header {
	return Header{
		Major:   1,
		Minor:   0,
		ID:      uuid.New(),
		Created: Now(),
	}
}

// Marshal encodes the header into a fresh 1024-byte buffer.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], Magic)
	binary.BigEndian.PutUint16(buf[8:10], h.Major)
	binary.BigEndian.PutUint16(buf[10:12], h.Minor)
	buf[12] = byte(h.Type)
	buf[13] = byte(h.Role)
	buf[14] = byte(h.Use)
	copy(buf[15:31], h.ID[:])
	copy(buf[31:47], h.Owner[:])
	copy(buf[47:63], h.Domain[:])
	copy(buf[63:79], h.Node[:])
	binary.BigEndian.PutUint64(buf[79:87], uint64(h.Created.Unix()))
	title := h.Title
	if len(title) > TitleSize {
		title = title[:TitleSize]
	}
	copy(buf[87:215], title)
	binary.BigEndian.PutUint32(buf[215:219], h.Entries)
	return buf
}

// UnmarshalHeader decodes a 1024-byte header region. The magic tag must
// match exactly.
func UnmarshalHeader(data []byte) (Header, error) {
	if len(data) != HeaderSize {
		return Header{}, fmt.Errorf("%w: header is %d bytes, want %d", ErrBadFormat, len(data), HeaderSize)
	}
	if string(data[0:8]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrBadFormat, data[0:8])
	}

	h := Header{
		Major: binary.BigEndian.Uint16(data[8:10]),
		Minor: binary.BigEndian.Uint16(data[10:12]),
		Type:  int8(data[12]),
		Role:  int8(data[13]),
		Use:   int8(data[14]),
	}
	copy(h.ID[:], data[15:31])
	copy(h.Owner[:], data[31:47])
	copy(h.Domain[:], data[47:63])
	copy(h.Node[:], data[63:79])
	h.Created = time.Unix(int64(binary.BigEndian.Uint64(data[79:87])), 0)
	h.Title = string(bytes.TrimRight(data[87:215], "\x00"))
	h.Entries = binary.BigEndian.Uint32(data[215:219])
	return h, nil
}
