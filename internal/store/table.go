package store

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/kastell/ar7/internal/record"
)

// Stream is the random-access byte stream the table persists through.
// Implemented by cipherio.Stream; tests substitute plain buffers.
type Stream interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
}

// growSlots is the minimum number of slots added by a table growth
// step, matching the initial slot count written at setup.
const growSlots = 8

// Match pairs an entry with its slot index.
type Match struct {
	Index int
	Entry record.Entry
}

// Table owns the in-memory mirror of every entry slot and mediates all
// allocation and mutation. Five derived index sets (files, directories,
// links, empties, blanks) are kept consistent on every update, and
// directory changes are propagated into the hierarchy.
type Table struct {
	stream Stream
	hier   *Hierarchy

	all     []record.Entry
	files   map[int]struct{}
	dirs    map[int]struct{}
	links   map[int]struct{}
	empties map[int]struct{}
	blanks  []int

	// patchHeader persists a changed slot count into the archive
	// header when the table grows or shrinks.
	patchHeader func(entries uint32) error
}

// New creates a table bound to a stream. patchHeader is invoked
// whenever the slot count changes.
func New(stream Stream, patchHeader func(entries uint32) error) *Table {
	return &Table{
		stream:      stream,
		hier:        newHierarchy(),
		patchHeader: patchHeader,
	}
}

// Load re-reads count slots from the stream and rebuilds the index
// sets and the hierarchy.
func (t *Table) Load(count int) error {
	if _, err := t.stream.Seek(record.HeaderSize, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, record.EntrySize)
	all := make([]record.Entry, 0, count)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(t.stream, buf); err != nil {
			return fmt.Errorf("read entry slot %d: %w", i, err)
		}
		e, err := record.UnmarshalEntry(buf)
		if err != nil {
			return fmt.Errorf("entry slot %d: %w", i, err)
		}
		all = append(all, e)
	}

	t.all = all
	t.files = make(map[int]struct{})
	t.dirs = make(map[int]struct{})
	t.links = make(map[int]struct{})
	t.empties = make(map[int]struct{})
	t.blanks = t.blanks[:0]
	for i, e := range all {
		switch e.Kind {
		case record.KindFile:
			t.files[i] = struct{}{}
		case record.KindDir:
			t.dirs[i] = struct{}{}
		case record.KindLink:
			t.links[i] = struct{}{}
		case record.KindEmpty:
			t.empties[i] = struct{}{}
		case record.KindBlank:
			t.blanks = append(t.blanks, i)
		default:
			return fmt.Errorf("%w: slot %d has unknown kind %q", ErrCorruptIndex, i, byte(e.Kind))
		}
	}

	return t.reloadHierarchy()
}

func (t *Table) reloadHierarchy() error {
	dirs := make([]record.Entry, 0, len(t.dirs))
	for i := range t.dirs {
		dirs = append(dirs, t.all[i])
	}
	return t.hier.rebuild(dirs)
}

// Count returns the total number of slots.
func (t *Table) Count() int { return len(t.all) }

// Entry returns the entry at a slot index.
func (t *Table) Entry(i int) record.Entry { return t.all[i] }

// Hierarchy returns the derived path hierarchy.
func (t *Table) Hierarchy() *Hierarchy { return t.hier }

// tableEnd is the byte offset just past the last slot.
func (t *Table) tableEnd() uint64 {
	return record.HeaderSize + uint64(len(t.all))*record.EntrySize
}

// DataStart is the sector-aligned start of the data region.
func (t *Table) DataStart() uint64 {
	return record.Sector(t.tableEnd())
}

// FindBlank reports whether at least n blank slots are available.
func (t *Table) FindBlank(n int) bool {
	return len(t.blanks) >= n
}

// GetBlank consumes and returns a free slot index. Callers must ensure
// availability first; a consumed index must be filled via Update or the
// table becomes inconsistent.
func (t *Table) GetBlank() (int, bool) {
	if len(t.blanks) == 0 {
		return 0, false
	}
	idx := t.blanks[0]
	t.blanks = t.blanks[1:]
	return idx, true
}

// EnsureBlanks grows the slot table until at least n blanks are free.
func (t *Table) EnsureBlanks(n int) error {
	if t.FindBlank(n) {
		return nil
	}
	return t.GrowBlanks(n)
}

// GetEmpty finds the smallest empty data-region hole of at least size
// bytes (best fit).
func (t *Table) GetEmpty(size uint64) (int, bool) {
	best := -1
	var bestSize uint64 = math.MaxUint64
	for i := range t.empties {
		if s := t.all[i].Size; s >= size && s < bestSize {
			best = i
			bestSize = s
		}
	}
	return best, best >= 0
}

// Hithermost returns the file or empty entry with the lowest data
// offset strictly greater than limit.
func (t *Table) Hithermost(limit uint64) (int, bool) {
	idx := -1
	var lowest uint64 = math.MaxUint64
	for _, set := range []map[int]struct{}{t.files, t.empties} {
		for i := range set {
			if off := t.all[i].Offset; off > limit && off < lowest {
				idx = i
				lowest = off
			}
		}
	}
	return idx, idx >= 0
}

// Outermost returns the file or empty entry with the highest nonzero
// data offset.
func (t *Table) Outermost() (int, bool) {
	idx := -1
	var highest uint64
	for _, set := range []map[int]struct{}{t.files, t.empties} {
		for i := range set {
			if off := t.all[i].Offset; off > highest {
				idx = i
				highest = off
			}
		}
	}
	return idx, idx >= 0
}

// EndOffset is the sector-aligned offset just past the highest used
// data region, where appends go.
func (t *Table) EndOffset() uint64 {
	if idx, ok := t.Outermost(); ok {
		e := t.all[idx]
		return record.Sector(e.Offset + e.Size)
	}
	return t.DataStart()
}

// Add allocates a slot for the entry and persists it. Directory and
// link entries consume one blank slot. File entries additionally
// allocate data-region space: from the best-fitting empty hole
// (splitting any excess into a smaller empty), else appended past the
// highest used offset, else right after the slot table; the payload is
// written sector-aligned with zero filler.
func (t *Table) Add(e record.Entry, data []byte) error {
	if err := t.EnsureBlanks(1); err != nil {
		return err
	}

	switch e.Kind {
	case record.KindDir, record.KindLink:
		bidx, _ := t.GetBlank()
		return t.Update(e, bidx)

	case record.KindFile:
		if len(data) == 0 {
			return fmt.Errorf("%w: file %s", ErrNoData, e.Name)
		}
		space := record.Sector(uint64(len(data)))
		var offset uint64
		if eidx, ok := t.GetEmpty(space); ok {
			empty := t.all[eidx]
			offset = empty.Offset
			if empty.Size > space {
				empty.Offset += space
				empty.Size -= space
				if err := t.Update(empty, eidx); err != nil {
					return err
				}
			} else if err := t.Update(record.NewBlank(), eidx); err != nil {
				return err
			}
		} else {
			offset = t.EndOffset()
		}

		e.Offset = offset
		e.Size = uint64(len(data))
		if err := t.WriteData(offset, data); err != nil {
			return err
		}
		bidx, _ := t.GetBlank()
		return t.Update(e, bidx)

	default:
		return fmt.Errorf("%w: cannot add %s entry", ErrWrongKind, e.Kind)
	}
}

// Update rewrites a slot in place, moving it between index sets when
// the kind changes and keeping the hierarchy in sync for directories.
func (t *Table) Update(e record.Entry, idx int) error {
	old := t.all[idx]
	if e.Kind != old.Kind {
		switch old.Kind {
		case record.KindFile:
			delete(t.files, idx)
		case record.KindLink:
			delete(t.links, idx)
		case record.KindDir:
			delete(t.dirs, idx)
		case record.KindEmpty:
			delete(t.empties, idx)
		case record.KindBlank:
			t.dropBlank(idx)
		}
		switch e.Kind {
		case record.KindFile:
			t.files[idx] = struct{}{}
		case record.KindLink:
			t.links[idx] = struct{}{}
		case record.KindDir:
			t.dirs[idx] = struct{}{}
		case record.KindEmpty:
			t.empties[idx] = struct{}{}
		case record.KindBlank:
			t.blanks = append(t.blanks, idx)
		default:
			return fmt.Errorf("%w: unknown kind %q", ErrCorruptIndex, byte(e.Kind))
		}
	}

	t.all[idx] = e
	if err := t.WriteEntry(e, idx); err != nil {
		return err
	}

	// Directory changes ripple into descendant paths, so the hierarchy
	// is rebuilt rather than patched: a rename or move of one directory
	// shifts the path of every directory below it.
	if old.Kind == record.KindDir || e.Kind == record.KindDir {
		if old.Kind != record.KindDir {
			return t.hier.Add(e)
		}
		return t.reloadHierarchy()
	}
	return nil
}

func (t *Table) dropBlank(idx int) {
	for i, b := range t.blanks {
		if b == idx {
			t.blanks = append(t.blanks[:i], t.blanks[i+1:]...)
			return
		}
	}
}

// GrowBlanks frees room for at least n new slots by vacating the
// lowest-offset data region: an empty region is shrunk or consumed, a
// file region is first relocated to the end of the data region. The
// slot table then grows into the vacated space and the header slot
// count is patched.
func (t *Table) GrowBlanks(n int) error {
	if n < growSlots {
		n = growSlots
	}
	need := uint64(n) * record.EntrySize
	tableEnd := t.tableEnd()

	var pending *record.Entry
	var space uint64
	for space < need {
		idx, ok := t.Hithermost(0)
		if !ok {
			// No data regions at all: the area past the table is free.
			space = need
			break
		}

		e := t.all[idx]
		var freed record.Entry
		switch e.Kind {
		case record.KindEmpty:
			freed = e
		case record.KindFile:
			var err error
			if freed, err = t.MoveEnd(idx); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: region slot %d is %s", ErrCorruptIndex, idx, e.Kind)
		}

		// The free area now spans from the table end to the end of the
		// vacated region.
		total := record.Sector(freed.Offset+freed.Size) - tableEnd
		remOffset := record.Sector(tableEnd + need)
		if tableEnd+total >= remOffset+record.SectorSize {
			rem := record.NewEmpty(remOffset, tableEnd+total-remOffset)
			if e.Kind == record.KindEmpty {
				if err := t.Update(rem, idx); err != nil {
					return err
				}
			} else {
				pending = &rem
			}
			space = need
		} else {
			if e.Kind == record.KindEmpty {
				if err := t.Update(record.NewBlank(), idx); err != nil {
					return err
				}
			}
			space = total
		}
	}

	for i := uint64(0); i < space/record.EntrySize; i++ {
		blank := record.NewBlank()
		idx := len(t.all)
		t.all = append(t.all, blank)
		t.blanks = append(t.blanks, idx)
		if err := t.WriteEntry(blank, idx); err != nil {
			return err
		}
	}

	if pending != nil {
		bidx, ok := t.GetBlank()
		if !ok {
			return fmt.Errorf("%w: no slot for split remainder", ErrCorruptIndex)
		}
		if err := t.Update(*pending, bidx); err != nil {
			return err
		}
	}

	return t.patchHeader(uint32(len(t.all)))
}

// MoveEnd relocates a file's payload to the end of the data region and
// returns the vacated region as an unregistered empty entry.
func (t *Table) MoveEnd(idx int) (record.Entry, error) {
	e := t.all[idx]
	if e.Kind != record.KindFile {
		return record.Entry{}, fmt.Errorf("%w: cannot relocate %s entry", ErrWrongKind, e.Kind)
	}

	data, err := t.LoadData(e)
	if err != nil {
		return record.Entry{}, err
	}
	newOffset := t.EndOffset()
	if err := t.WriteData(newOffset, data); err != nil {
		return record.Entry{}, err
	}

	freed := record.NewEmpty(e.Offset, record.Sector(e.Size))
	e.Offset = newOffset
	if err := t.Update(e, idx); err != nil {
		return record.Entry{}, err
	}
	return freed, nil
}

// Search evaluates the query over all slots and returns the matching
// index/entry pairs in slot order.
func (t *Table) Search(q *Query) []Match {
	pred := q.Build(t.hier.PathMap())
	var out []Match
	for i, e := range t.all {
		if pred(e) {
			out = append(out, Match{Index: i, Entry: e})
		}
	}
	return out
}

// WriteEntry persists one slot record.
func (t *Table) WriteEntry(e record.Entry, idx int) error {
	offset := int64(record.HeaderSize) + int64(idx)*record.EntrySize
	if _, err := t.stream.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	if _, err := t.stream.Write(e.Marshal()); err != nil {
		return fmt.Errorf("write entry slot %d: %w", idx, err)
	}
	return nil
}

// LoadData reads a file entry's stored payload.
func (t *Table) LoadData(e record.Entry) ([]byte, error) {
	if e.Kind != record.KindFile {
		return nil, fmt.Errorf("%w: cannot read payload of %s entry", ErrWrongKind, e.Kind)
	}
	if _, err := t.stream.Seek(int64(e.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	data := make([]byte, e.Size)
	if _, err := io.ReadFull(t.stream, data); err != nil {
		return nil, fmt.Errorf("read payload of %s: %w", e.ID, err)
	}
	return data, nil
}

// WriteData writes a payload at the given offset, zero-padded to the
// next sector boundary.
func (t *Table) WriteData(offset uint64, data []byte) error {
	if _, err := t.stream.Seek(int64(offset), io.SeekStart); err != nil {
		return err
	}
	if _, err := t.stream.Write(data); err != nil {
		return fmt.Errorf("write payload at %d: %w", offset, err)
	}
	if pad := record.Sector(uint64(len(data))) - uint64(len(data)); pad > 0 {
		if _, err := t.stream.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("write sector filler at %d: %w", offset, err)
		}
	}
	return nil
}

// LiveIndices returns the slot indices of all directories, files, and
// links, in that order. This is the identity ordering vacuum rewrites in.
func (t *Table) LiveIndices() []int {
	out := make([]int, 0, len(t.dirs)+len(t.files)+len(t.links))
	for _, set := range []map[int]struct{}{t.dirs, t.files, t.links} {
		start := len(out)
		for i := range set {
			out = append(out, i)
		}
		slices.Sort(out[start:])
	}
	return out
}
