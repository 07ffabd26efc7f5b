package ar7

import (
	"crypto/sha1"
	"fmt"

	"github.com/kastell/ar7/internal/codec"
	"github.com/kastell/ar7/internal/record"
)

// Load reads and verifies the payload of the file at the given path. A
// link is followed to the file it points at. The payload is
// decompressed before its digest is checked.
func (a *Archive) Load(name string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	_, e, err := a.resolveFile(name)
	if err != nil {
		return nil, err
	}
	stored, err := a.table.LoadData(e)
	if err != nil {
		return nil, err
	}
	data, err := codec.Decompress(e.Compression, stored)
	if err != nil {
		return nil, err
	}
	if sha1.Sum(data) != e.Digest {
		return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, normalize(name))
	}
	return data, nil
}

// Save replaces the payload of the file at the given path. A link is
// followed to the file it points at. A shrinking payload is rewritten
// in place and the excess registered for reuse; a growing payload is
// relocated and the whole old region registered for reuse.
func (a *Archive) Save(name string, data []byte, opts ...SaveOption) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %s", ErrNoData, normalize(name))
	}

	idx, e, err := a.resolveFile(name)
	if err != nil {
		return err
	}

	cfg := saveConfig{modified: record.Now()}
	for _, opt := range opts {
		opt(&cfg)
	}
	comp := e.Compression
	if cfg.compression != nil {
		comp = *cfg.compression
	}

	stored, err := codec.Compress(comp, data)
	if err != nil {
		return err
	}

	// Reserve a slot for whichever empty region falls out below, then
	// refetch: growing the slot table can relocate this file.
	if err := a.table.EnsureBlanks(1); err != nil {
		return err
	}
	e = a.table.Entry(idx)

	osize := record.Sector(e.Size)
	nsize := record.Sector(uint64(len(stored)))

	switch {
	case nsize <= osize:
		if err := a.table.WriteData(e.Offset, stored); err != nil {
			return err
		}
		if nsize < osize {
			bidx, _ := a.table.GetBlank()
			empty := record.NewEmpty(e.Offset+nsize, osize-nsize)
			if err := a.table.Update(empty, bidx); err != nil {
				return err
			}
		}

	default:
		if osize > 0 {
			bidx, _ := a.table.GetBlank()
			empty := record.NewEmpty(e.Offset, osize)
			if err := a.table.Update(empty, bidx); err != nil {
				return err
			}
		}
		offset, err := a.allocate(nsize)
		if err != nil {
			return err
		}
		if err := a.table.WriteData(offset, stored); err != nil {
			return err
		}
		e.Offset = offset
	}

	e.Size = uint64(len(stored))
	e.Length = uint64(len(data))
	e.Compression = comp
	e.Digest = sha1.Sum(data)
	e.Modified = cfg.modified
	if err := a.table.Update(e, idx); err != nil {
		return err
	}

	a.log.Debug("file saved", "path", normalize(name), "id", e.ID,
		"length", e.Length)
	return nil
}

// allocate finds space for a sector-aligned payload of the given size:
// the best-fitting empty hole, with any excess split into a smaller
// hole, else the end of the data region. The caller holds the archive
// mutex.
func (a *Archive) allocate(size uint64) (uint64, error) {
	eidx, ok := a.table.GetEmpty(size)
	if !ok {
		return a.table.EndOffset(), nil
	}
	empty := a.table.Entry(eidx)
	offset := empty.Offset
	if empty.Size > size {
		empty.Offset += size
		empty.Size -= size
		if err := a.table.Update(empty, eidx); err != nil {
			return 0, err
		}
	} else if err := a.table.Update(record.NewBlank(), eidx); err != nil {
		return 0, err
	}
	return offset, nil
}
