// Package cipherio presents a seekable plaintext byte stream over a
// file stored as fixed-size authenticated-encryption blocks.
//
// Each physical block seals one 16 KiB plaintext page with
// XChaCha20-Poly1305 and pads the remainder with random bytes so that
// truncation patterns do not leak through block counts. Block 0
// additionally carries a sealed 8-byte field recording the true logical
// length of the stream. The block key is derived from the caller's
// secret with HKDF-SHA256, and every page is bound to its block index
// through the AEAD's additional data, so blocks cannot be swapped or
// replayed at other positions.
package cipherio

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Block geometry. A physical block holds the sealed page plus random
// trailing padding; block 0 replaces the padding with the sealed
// logical-length field followed by shorter padding.
const (
	PageSize       = 16384
	cipherPageSize = PageSize + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead // 16424
	BlockSize      = 16896

	padSize       = BlockSize - cipherPageSize                                  // 472
	lengthSize    = 8 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead // 48
	lengthPadSize = padSize - lengthSize                                        // 424
)

// HKDF info string for block key derivation, and AAD domain tag for the
// logical-length field. Changing either invalidates existing archives.
var (
	hkdfInfoBlockKey = []byte("ar7.stream.key.v1")
	aadLengthField   = []byte("ar7.stream.length.v1")
)

// Sentinel errors.
var (
	// ErrLocked is returned when the underlying file is exclusively
	// locked by another stream.
	ErrLocked = errors.New("ar7: archive is locked by another process")

	// ErrCorrupt is returned when a block fails authentication. The
	// file must be treated as unusable.
	ErrCorrupt = errors.New("ar7: block authentication failed")

	// ErrClosed is returned by operations on a closed stream or archive.
	ErrClosed = errors.New("ar7: archive is closed")
)

// Stream is a random-access byte stream over an encrypted block file.
// It keeps one decrypted page in memory and writes it back only when
// the cursor leaves the page or on Flush, Truncate, or Close.
//
// Stream is not safe for concurrent use; the archive layer serializes
// access.
type Stream struct {
	file   *os.File
	aead   cipher.AEAD
	blocks int64 // physical blocks present on disk
	length int64 // logical stream length
	cursor int64 // logical position

	buf      [PageSize]byte
	blockIdx int64
	dirty    bool
	closed   bool
}

// Create creates a fresh encrypted stream file. The file must not
// already exist.
func Create(path string, secret []byte) (*Stream, error) {
	return open(path, secret, os.O_RDWR|os.O_CREATE|os.O_EXCL)
}

// Open opens an existing encrypted stream file for reading and
// writing. It acquires a non-blocking exclusive advisory lock on the
// file; if another process holds the lock, Open fails with ErrLocked.
func Open(path string, secret []byte) (*Stream, error) {
	return open(path, secret, os.O_RDWR)
}

func open(path string, secret []byte, flag int) (*Stream, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	file, err := os.OpenFile(path, flag, 0o600)
	if err != nil {
		return nil, err
	}
	if err := lockFile(file); err != nil {
		file.Close()
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size()%BlockSize != 0 {
		unlockFile(file)
		file.Close()
		return nil, fmt.Errorf("%w: file size %d is not block-aligned", ErrCorrupt, info.Size())
	}

	s := &Stream{file: file, aead: aead, blocks: info.Size() / BlockSize}
	if s.blocks > 0 {
		if s.length, err = s.readLength(); err != nil {
			unlockFile(file)
			file.Close()
			return nil, err
		}
		if err := s.load(0); err != nil {
			unlockFile(file)
			file.Close()
			return nil, err
		}
	}
	return s, nil
}

// deriveKey expands the caller's secret into the 32-byte block key.
// The secret is already high-entropy key material, so HKDF runs with a
// nil salt per RFC 5869.
func deriveKey(secret []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, hkdfInfoBlockKey)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive block key: %w", err)
	}
	return key, nil
}

func blockAAD(idx int64) []byte {
	aad := make([]byte, 8)
	binary.BigEndian.PutUint64(aad, uint64(idx))
	return aad
}

// seal encrypts a page under a fresh random nonce, bound to its block
// index. Output is nonce||ciphertext||tag, exactly cipherPageSize bytes.
func (s *Stream) seal(idx int64, page []byte) ([]byte, error) {
	out := make([]byte, chacha20poly1305.NonceSizeX, cipherPageSize)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(out, out[:chacha20poly1305.NonceSizeX], page, blockAAD(idx)), nil
}

// writeBlock seals and writes one physical block. Blocks other than
// block 0 get fresh random trailing padding; block 0's trailing bytes
// belong to the length field and are written by writeLength.
func (s *Stream) writeBlock(idx int64, page []byte) error {
	blob, err := s.seal(idx, page)
	if err != nil {
		return err
	}
	if idx > 0 {
		pad := make([]byte, padSize)
		if _, err := rand.Read(pad); err != nil {
			return fmt.Errorf("generate padding: %w", err)
		}
		blob = append(blob, pad...)
	}
	if _, err := s.file.WriteAt(blob, idx*BlockSize); err != nil {
		return fmt.Errorf("write block %d: %w", idx, err)
	}
	if idx >= s.blocks {
		s.blocks = idx + 1
	}
	return nil
}

// save writes the buffered page back if dirty, materializing any
// skipped blocks in between as sealed zero pages.
func (s *Stream) save() error {
	if !s.dirty {
		return nil
	}
	var zero [PageSize]byte
	for b := s.blocks; b < s.blockIdx; b++ {
		if err := s.writeBlock(b, zero[:]); err != nil {
			return err
		}
	}
	if err := s.writeBlock(s.blockIdx, s.buf[:]); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// load reads and authenticates the page for block idx into the buffer.
// Blocks beyond the end of the file read as zero pages.
func (s *Stream) load(idx int64) error {
	if idx < s.blocks {
		blob := make([]byte, cipherPageSize)
		if _, err := s.file.ReadAt(blob, idx*BlockSize); err != nil {
			return fmt.Errorf("read block %d: %w", idx, err)
		}
		page, err := s.aead.Open(nil, blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:], blockAAD(idx))
		if err != nil {
			return fmt.Errorf("%w: block %d: %v", ErrCorrupt, idx, err)
		}
		copy(s.buf[:], page)
	} else {
		clear(s.buf[:])
	}
	s.blockIdx = idx
	s.dirty = false
	return nil
}

// writeLength seals the logical length into block 0's sub-field.
func (s *Stream) writeLength() error {
	var plain [8]byte
	binary.BigEndian.PutUint64(plain[:], uint64(s.length))

	out := make([]byte, chacha20poly1305.NonceSizeX, lengthSize+lengthPadSize)
	if _, err := rand.Read(out); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	out = s.aead.Seal(out, out[:chacha20poly1305.NonceSizeX], plain[:], aadLengthField)

	pad := make([]byte, lengthPadSize)
	if _, err := rand.Read(pad); err != nil {
		return fmt.Errorf("generate padding: %w", err)
	}
	out = append(out, pad...)

	if _, err := s.file.WriteAt(out, cipherPageSize); err != nil {
		return fmt.Errorf("write length field: %w", err)
	}
	return nil
}

func (s *Stream) readLength() (int64, error) {
	blob := make([]byte, lengthSize)
	if _, err := s.file.ReadAt(blob, cipherPageSize); err != nil {
		return 0, fmt.Errorf("read length field: %w", err)
	}
	plain, err := s.aead.Open(nil, blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:], aadLengthField)
	if err != nil {
		return 0, fmt.Errorf("%w: length field: %v", ErrCorrupt, err)
	}
	return int64(binary.BigEndian.Uint64(plain)), nil
}

// Length returns the logical length of the stream.
func (s *Stream) Length() int64 {
	return s.length
}

// Read reads up to len(p) bytes from the current position. Reads past
// the logical length return the remaining bytes, then io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.cursor >= s.length {
		return 0, io.EOF
	}

	n := int64(len(p))
	if rest := s.length - s.cursor; n > rest {
		n = rest
	}

	var copied int64
	for copied < n {
		blk := s.cursor / PageSize
		off := s.cursor % PageSize
		if blk != s.blockIdx {
			if err := s.save(); err != nil {
				return int(copied), err
			}
			if err := s.load(blk); err != nil {
				return int(copied), err
			}
		}
		c := PageSize - off
		if rest := n - copied; c > rest {
			c = rest
		}
		copy(p[copied:copied+c], s.buf[off:off+c])
		copied += c
		s.cursor += c
	}
	return int(copied), nil
}

// Write writes p at the current position, extending the logical length
// as needed. Data stays in the page buffer until the buffer boundary is
// crossed or the stream is flushed.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	var copied int64
	n := int64(len(p))
	for copied < n {
		blk := s.cursor / PageSize
		off := s.cursor % PageSize
		if blk != s.blockIdx {
			if err := s.save(); err != nil {
				return int(copied), err
			}
			if err := s.load(blk); err != nil {
				return int(copied), err
			}
		}
		c := PageSize - off
		if rest := n - copied; c > rest {
			c = rest
		}
		copy(s.buf[off:off+c], p[copied:copied+c])
		s.dirty = true
		copied += c
		s.cursor += c
		if s.cursor > s.length {
			s.length = s.cursor
		}
	}
	return int(copied), nil
}

// Seek sets the cursor. Seeking beyond the logical length is permitted.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.cursor + offset
	case io.SeekEnd:
		pos = s.length + offset
	default:
		return 0, fmt.Errorf("invalid seek whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position %d", pos)
	}
	s.cursor = pos
	return pos, nil
}

// Truncate sets the logical length to size, zero-fills the remainder of
// the final page, and trims the physical file so that the block count
// is exactly ceil(size/PageSize).
func (s *Stream) Truncate(size int64) error {
	if s.closed {
		return ErrClosed
	}
	if size < 0 {
		return fmt.Errorf("negative truncate size %d", size)
	}

	if size == 0 {
		if err := s.file.Truncate(0); err != nil {
			return err
		}
		clear(s.buf[:])
		s.blockIdx = 0
		s.dirty = false
		s.blocks = 0
		s.length = 0
		s.cursor = 0
		return nil
	}

	nblocks := (size + PageSize - 1) / PageSize
	blk := nblocks - 1
	if blk != s.blockIdx {
		if err := s.save(); err != nil {
			return err
		}
		if err := s.load(blk); err != nil {
			return err
		}
	}
	clear(s.buf[size-blk*PageSize:])
	s.dirty = true
	s.length = size
	if err := s.save(); err != nil {
		return err
	}
	if err := s.writeLength(); err != nil {
		return err
	}
	if err := s.file.Truncate(nblocks * BlockSize); err != nil {
		return err
	}
	s.blocks = nblocks
	if s.cursor > size {
		s.cursor = size
	}
	return nil
}

// Flush writes back the dirty page and persists the logical length.
func (s *Stream) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if err := s.save(); err != nil {
		return err
	}
	if s.blocks > 0 {
		return s.writeLength()
	}
	return nil
}

// Close flushes, releases the advisory lock, and closes the file.
// Closing an already-closed stream is a no-op.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	flushErr := s.Flush()
	s.closed = true
	unlockFile(s.file)
	closeErr := s.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
