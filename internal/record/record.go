// Package record implements the fixed-width binary encoding of archive
// headers and entries. All numeric fields are big-endian; fixed strings
// are NUL-padded UTF-8. Encoding and decoding are pure functions with
// no I/O.
package record

import (
	"errors"
	"fmt"
	"time"
)

// On-disk sizes. The header occupies the first 1024 bytes of the
// archive; entry slots follow immediately, one fixed 256-byte record
// per slot. File payloads are aligned to 512-byte sectors.
const (
	Magic      = "archive7"
	HeaderSize = 1024
	EntrySize  = 256
	SectorSize = 512

	NameSize   = 128
	TitleSize  = 128
	DigestSize = 20
)

// Sentinel errors for record decoding and construction.
var (
	// ErrBadFormat is returned when a header does not carry the archive
	// magic, or a record buffer has the wrong size.
	ErrBadFormat = errors.New("ar7: invalid archive format")

	// ErrNameTooLong is returned when an entry name exceeds 128 bytes.
	ErrNameTooLong = errors.New("ar7: name exceeds 128 bytes")
)

// Kind discriminates entry slots.
type Kind byte

const (
	KindFile  Kind = 'f'
	KindLink  Kind = 'l'
	KindDir   Kind = 'd'
	KindEmpty Kind = 'e'
	KindBlank Kind = 'b'
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindLink:
		return "link"
	case KindDir:
		return "directory"
	case KindEmpty:
		return "empty"
	case KindBlank:
		return "blank"
	default:
		return fmt.Sprintf("kind(%q)", byte(k))
	}
}

// Compression identifies the per-file compression algorithm.
type Compression int8

const (
	CompressionNone Compression = iota
	CompressionZip
	CompressionGzip
	CompressionBzip2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZip:
		return "zip"
	case CompressionGzip:
		return "gzip"
	case CompressionBzip2:
		return "bzip2"
	default:
		return "unknown"
	}
}

// Sector rounds n up to the next sector boundary.
func Sector(n uint64) uint64 {
	return (n + SectorSize - 1) &^ (SectorSize - 1)
}

// Now returns the current time truncated to whole seconds, the
// resolution of on-disk timestamps.
func Now() time.Time {
	return time.Now().Truncate(time.Second)
}

// ValidateName rejects empty names and names longer than NameSize bytes.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrBadFormat)
	}
	if len(name) > NameSize {
		return fmt.Errorf("%w: %q is %d bytes", ErrNameTooLong, name, len(name))
	}
	return nil
}
