package ar7

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"

	"github.com/kastell/ar7/internal/record"
)

// Vacuum compacts the archive to its minimal size. Blank slots and
// empty regions are dropped, the surviving entries are rewritten into a
// contiguous slot table, file payloads are packed downward in ascending
// offset order, and the container is truncated. Soft-deleted entries
// survive a vacuum; only reclaimed space is removed.
func (a *Archive) Vacuum() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	live := a.table.LiveIndices()
	entries := make([]record.Entry, 0, len(live))
	seen := make(map[uuid.UUID]struct{}, len(live))
	for _, idx := range live {
		e := a.table.Entry(idx)
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: duplicate entry id %s", ErrCorruptIndex, e.ID)
		}
		seen[e.ID] = struct{}{}
		entries = append(entries, e)
	}

	a.header.Entries = uint32(len(entries))
	if err := a.writeHeader(); err != nil {
		return err
	}
	if _, err := a.stream.Seek(record.HeaderSize, io.SeekStart); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := a.stream.Write(e.Marshal()); err != nil {
			return fmt.Errorf("rewrite entry table: %w", err)
		}
	}
	if err := a.table.Load(len(entries)); err != nil {
		return err
	}

	// Pack payloads downward. Hard-deleted files have no region left
	// and are skipped. Regions are disjoint and processed in ascending
	// order, so every move is toward a lower offset.
	type region struct {
		idx int
		e   record.Entry
	}
	var files []region
	for i := 0; i < a.table.Count(); i++ {
		if e := a.table.Entry(i); e.Kind == KindFile && e.Size > 0 {
			files = append(files, region{idx: i, e: e})
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].e.Offset < files[j].e.Offset
	})

	offset := a.table.DataStart()
	for _, f := range files {
		e := f.e
		if e.Offset != offset {
			data, err := a.table.LoadData(e)
			if err != nil {
				return err
			}
			if err := a.table.WriteData(offset, data); err != nil {
				return err
			}
			e.Offset = offset
			if err := a.table.Update(e, f.idx); err != nil {
				return err
			}
		}
		offset = record.Sector(offset + e.Size)
	}

	if err := a.stream.Flush(); err != nil {
		return err
	}
	if err := a.stream.Truncate(int64(offset)); err != nil {
		return err
	}

	a.log.Info("archive vacuumed", "entries", len(entries), "size", offset)
	return nil
}
