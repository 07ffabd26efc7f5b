package store

import "errors"

// Sentinel errors surfaced through the archive facade.
var (
	// ErrCorruptIndex is returned for structural inconsistencies:
	// duplicate ids, dangling parent references, or a broken free list.
	ErrCorruptIndex = errors.New("ar7: corrupt entry index")

	// ErrNoData is returned when a file entry is added without payload.
	ErrNoData = errors.New("ar7: file entry requires payload data")

	// ErrWrongKind is returned when an operation is applied to an
	// incompatible entry kind.
	ErrWrongKind = errors.New("ar7: wrong entry kind")
)
