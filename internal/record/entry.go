package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one fixed 256-byte slot in the table following the header.
//
// Layout (big-endian):
//
//	kind:1 id[16] parent[16] owner[16]
//	created:i64 modified:i64 offset:u64 size:u64 length:u64
//	compression:i8 deleted:u8 pad[17] digest[20] name[128]
//
// Offset and Size are physical data-region coordinates and are only
// meaningful for file and empty entries. Length is the uncompressed
// payload size of a file. A link stores the target entry id in Owner.
type Entry struct {
	Kind        Kind
	ID          uuid.UUID
	Parent      uuid.UUID
	Owner       uuid.UUID
	Created     time.Time
	Modified    time.Time
	Offset      uint64
	Size        uint64
	Length      uint64
	Compression Compression
	Deleted     bool
	Digest      [DigestSize]byte
	Name        string
}

// NewBlank returns an unused slot, allocatable by any future entry.
func NewBlank() Entry {
	return Entry{Kind: KindBlank, ID: uuid.New()}
}

// NewEmpty returns a marker for a reusable hole in the data region.
func NewEmpty(offset, size uint64) Entry {
	return Entry{Kind: KindEmpty, ID: uuid.New(), Offset: offset, Size: size}
}

// NewDir returns a directory entry under the given parent. A zero
// parent id places the directory at the root.
func NewDir(name string, parent uuid.UUID) (Entry, error) {
	if err := ValidateName(name); err != nil {
		return Entry{}, err
	}
	now := Now()
	return Entry{
		Kind:     KindDir,
		ID:       uuid.New(),
		Parent:   parent,
		Created:  now,
		Modified: now,
		Name:     name,
	}, nil
}

// NewLink returns a link entry pointing at the target entry id.
func NewLink(name string, target, parent uuid.UUID) (Entry, error) {
	if err := ValidateName(name); err != nil {
		return Entry{}, err
	}
	now := Now()
	return Entry{
		Kind:     KindLink,
		ID:       uuid.New(),
		Parent:   parent,
		Owner:    target,
		Created:  now,
		Modified: now,
		Name:     name,
	}, nil
}

// NewFile returns a file entry. Size is the stored (possibly
// compressed) payload size, Length the uncompressed size, and the
// digest is SHA-1 over the uncompressed payload. The data-region
// offset is assigned at allocation time.
func NewFile(name string, parent uuid.UUID, size, length uint64, comp Compression, digest [DigestSize]byte) (Entry, error) {
	if err := ValidateName(name); err != nil {
		return Entry{}, err
	}
	now := Now()
	return Entry{
		Kind:        KindFile,
		ID:          uuid.New(),
		Parent:      parent,
		Created:     now,
		Modified:    now,
		Size:        size,
		Length:      length,
		Compression: comp,
		Digest:      digest,
		Name:        name,
	}, nil
}

// Marshal encodes the entry into a fresh 256-byte buffer.
func (e Entry) Marshal() []byte {
	buf := make([]byte, EntrySize)
	buf[0] = byte(e.Kind)
	copy(buf[1:17], e.ID[:])
	copy(buf[17:33], e.Parent[:])
	copy(buf[33:49], e.Owner[:])
	binary.BigEndian.PutUint64(buf[49:57], uint64(e.Created.Unix()))
	binary.BigEndian.PutUint64(buf[57:65], uint64(e.Modified.Unix()))
	binary.BigEndian.PutUint64(buf[65:73], e.Offset)
	binary.BigEndian.PutUint64(buf[73:81], e.Size)
	binary.BigEndian.PutUint64(buf[81:89], e.Length)
	buf[89] = byte(e.Compression)
	if e.Deleted {
		buf[90] = 1
	}
	copy(buf[108:128], e.Digest[:])
	name := e.Name
	if len(name) > NameSize {
		name = name[:NameSize]
	}
	copy(buf[128:256], name)
	return buf
}

// UnmarshalEntry decodes a 256-byte entry slot.
func UnmarshalEntry(data []byte) (Entry, error) {
	if len(data) != EntrySize {
		return Entry{}, fmt.Errorf("%w: entry is %d bytes, want %d", ErrBadFormat, len(data), EntrySize)
	}

	e := Entry{
		Kind:        Kind(data[0]),
		Created:     time.Unix(int64(binary.BigEndian.Uint64(data[49:57])), 0),
		Modified:    time.Unix(int64(binary.BigEndian.Uint64(data[57:65])), 0),
		Offset:      binary.BigEndian.Uint64(data[65:73]),
		Size:        binary.BigEndian.Uint64(data[73:81]),
		Length:      binary.BigEndian.Uint64(data[81:89]),
		Compression: Compression(data[89]),
		Deleted:     data[90] != 0,
		Name:        string(bytes.TrimRight(data[128:256], "\x00")),
	}
	copy(e.ID[:], data[1:17])
	copy(e.Parent[:], data[17:33])
	copy(e.Owner[:], data[33:49])
	copy(e.Digest[:], data[108:128])
	return e, nil
}
