package ar7

import (
	"github.com/kastell/ar7/internal/record"
)

// Entry is a single index record: a directory, file, link, empty
// region, or blank slot.
type Entry = record.Entry

// Header is the archive-wide metadata record stored at offset zero.
type Header = record.Header

// Kind tags what an Entry describes.
type Kind = record.Kind

// Entry kinds.
const (
	KindFile  = record.KindFile
	KindLink  = record.KindLink
	KindDir   = record.KindDir
	KindEmpty = record.KindEmpty
	KindBlank = record.KindBlank
)

// Compression selects the payload codec for a file.
type Compression = record.Compression

// Payload codecs.
const (
	CompressionNone  = record.CompressionNone
	CompressionZip   = record.CompressionZip
	CompressionGzip  = record.CompressionGzip
	CompressionBzip2 = record.CompressionBzip2
)

// DeleteMode controls how Remove disposes of an entry.
type DeleteMode int

const (
	// DeleteSoft marks the entry deleted but keeps slot and payload.
	DeleteSoft DeleteMode = 1 + iota

	// DeleteHard marks the entry deleted and registers its payload
	// region for reuse.
	DeleteHard

	// DeleteErase blanks the slot entirely and registers the payload
	// region for reuse.
	DeleteErase
)

func (m DeleteMode) String() string {
	switch m {
	case DeleteSoft:
		return "soft"
	case DeleteHard:
		return "hard"
	case DeleteErase:
		return "erase"
	default:
		return "unknown"
	}
}
