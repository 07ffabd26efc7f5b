package ar7

import (
	"errors"

	"github.com/kastell/ar7/internal/cipherio"
	"github.com/kastell/ar7/internal/record"
	"github.com/kastell/ar7/internal/store"
)

// Sentinel errors returned by archive operations. Match them with
// errors.Is; returned errors usually wrap a sentinel with context.
var (
	// ErrBadFormat indicates a malformed header, entry, or name.
	ErrBadFormat = record.ErrBadFormat

	// ErrNameTooLong indicates a name exceeding the fixed slot size.
	ErrNameTooLong = record.ErrNameTooLong

	// ErrCorrupt indicates the container failed authentication or has
	// an impossible size. The secret being wrong is indistinguishable
	// from tampering and reports the same error.
	ErrCorrupt = cipherio.ErrCorrupt

	// ErrLocked indicates another process holds the archive file.
	ErrLocked = cipherio.ErrLocked

	// ErrClosed indicates the archive has been closed.
	ErrClosed = cipherio.ErrClosed

	// ErrCorruptIndex indicates an inconsistent entry ledger, such as
	// an entry whose parent chain does not reach the root.
	ErrCorruptIndex = store.ErrCorruptIndex

	// ErrNoData is returned when a file operation is given no payload.
	ErrNoData = store.ErrNoData

	// ErrWrongKind indicates the path resolved to an entry of a
	// different kind than the operation requires.
	ErrWrongKind = store.ErrWrongKind

	// ErrNotFound indicates no live entry matched the path.
	ErrNotFound = errors.New("ar7: path not found")

	// ErrExists indicates the target name is taken in its directory.
	ErrExists = errors.New("ar7: name already exists")

	// ErrNotEmpty indicates a soft delete of a non-empty directory.
	ErrNotEmpty = errors.New("ar7: directory not empty")

	// ErrDigestMismatch indicates a loaded payload failed its SHA-1
	// integrity check.
	ErrDigestMismatch = errors.New("ar7: payload digest mismatch")

	// ErrLinkToLink indicates an attempt to create a link whose target
	// is itself a link.
	ErrLinkToLink = errors.New("ar7: cannot link to a link")
)
