package ar7

import (
	"crypto/sha1"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kastell/ar7/internal/codec"
	"github.com/kastell/ar7/internal/record"
	"github.com/kastell/ar7/internal/store"
)

// Mkdir creates a directory at the given path and returns its id. The
// parent directory must already exist. An existing directory at the
// path is returned as is.
func (a *Archive) Mkdir(name string) (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return uuid.Nil, ErrClosed
	}

	name = normalize(name)
	if id, ok := a.table.Hierarchy().ID(name); ok {
		return id, nil
	}
	dir, base := splitPath(name)
	pid, err := a.parentID(dir)
	if err != nil {
		return uuid.Nil, err
	}
	if err := a.available(base, pid); err != nil {
		return uuid.Nil, err
	}
	e, err := record.NewDir(base, pid)
	if err != nil {
		return uuid.Nil, err
	}
	if err := a.table.Add(e, nil); err != nil {
		return uuid.Nil, err
	}
	a.log.Debug("directory created", "path", name, "id", e.ID)
	return e.ID, nil
}

// mkdirAll creates the directory path along with any missing parents.
// The replicator uses it to materialize files whose ancestors exist
// only on the source side.
func (a *Archive) mkdirAll(name string) (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return uuid.Nil, ErrClosed
	}
	return a.mkdir(normalize(name))
}

// mkdir walks the path components creating the missing tail. The caller
// holds the archive mutex.
func (a *Archive) mkdir(name string) (uuid.UUID, error) {
	hier := a.table.Hierarchy()
	if id, ok := hier.ID(name); ok {
		return id, nil
	}

	cur := "/"
	pid := uuid.Nil
	for _, seg := range strings.Split(strings.TrimPrefix(name, "/"), "/") {
		next := path.Join(cur, seg)
		if id, ok := hier.ID(next); ok {
			cur, pid = next, id
			continue
		}
		if err := a.available(seg, pid); err != nil {
			return uuid.Nil, err
		}
		e, err := record.NewDir(seg, pid)
		if err != nil {
			return uuid.Nil, err
		}
		if err := a.table.Add(e, nil); err != nil {
			return uuid.Nil, err
		}
		a.log.Debug("directory created", "path", next, "id", e.ID)
		cur, pid = next, e.ID
	}
	return pid, nil
}

// Mkfile creates a file at the given path holding data and returns its
// id. The parent directory must exist. The digest always covers the
// uncompressed payload.
func (a *Archive) Mkfile(name string, data []byte, opts ...FileOption) (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return uuid.Nil, ErrClosed
	}
	if len(data) == 0 {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNoData, normalize(name))
	}

	cfg := fileConfig{compression: CompressionNone}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir, base := splitPath(name)
	pid, err := a.parentID(dir)
	if err != nil {
		return uuid.Nil, err
	}
	if err := a.available(base, pid); err != nil {
		return uuid.Nil, err
	}

	stored, err := codec.Compress(cfg.compression, data)
	if err != nil {
		return uuid.Nil, err
	}
	e, err := record.NewFile(base, pid, uint64(len(stored)), uint64(len(data)),
		cfg.compression, sha1.Sum(data))
	if err != nil {
		return uuid.Nil, err
	}
	if cfg.id != uuid.Nil {
		e.ID = cfg.id
	}
	e.Owner = cfg.owner
	if !cfg.created.IsZero() {
		e.Created = cfg.created.Truncate(time.Second)
	}
	if !cfg.modified.IsZero() {
		e.Modified = cfg.modified.Truncate(time.Second)
	}

	if err := a.table.Add(e, stored); err != nil {
		return uuid.Nil, err
	}
	a.log.Debug("file created", "path", normalize(name), "id", e.ID,
		"length", e.Length, "compression", e.Compression)
	return e.ID, nil
}

// Link creates a link at the given path pointing at the file at target.
// Linking to another link is refused.
func (a *Archive) Link(name, target string) (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return uuid.Nil, ErrClosed
	}

	dir, base := splitPath(name)
	pid, err := a.parentID(dir)
	if err != nil {
		return uuid.Nil, err
	}
	if err := a.available(base, pid); err != nil {
		return uuid.Nil, err
	}

	_, te, err := a.findEntry(target, KindFile, KindLink)
	if err != nil {
		return uuid.Nil, err
	}
	if te.Kind == KindLink {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrLinkToLink, normalize(target))
	}

	e, err := record.NewLink(base, te.ID, pid)
	if err != nil {
		return uuid.Nil, err
	}
	if err := a.table.Add(e, nil); err != nil {
		return uuid.Nil, err
	}
	a.log.Debug("link created", "path", normalize(name), "target", te.ID)
	return e.ID, nil
}

// Remove deletes the entry at the given path. Without an explicit mode
// the archive's default applies. A directory must be empty; entries
// below it, deleted or not, block the removal.
func (a *Archive) Remove(name string, mode ...DeleteMode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	m := a.mode
	if len(mode) > 0 {
		m = mode[0]
	}

	idx, e, err := a.findEntry(name)
	if err != nil {
		return err
	}

	if e.Kind == KindDir {
		children := a.table.Search(store.NewQuery("").
			Parent(store.Include, e.ID))
		if len(children) > 0 {
			return fmt.Errorf("%w: %s", ErrNotEmpty, normalize(name))
		}
	}

	switch m {
	case DeleteSoft:
		e.Deleted = true
		e.Modified = record.Now()
		if err := a.table.Update(e, idx); err != nil {
			return err
		}

	case DeleteHard:
		if e.Kind == KindFile {
			if e, err = a.releaseFileRegion(idx); err != nil {
				return err
			}
			e.Offset = 0
			e.Size = 0
		}
		e.Deleted = true
		e.Modified = record.Now()
		if err := a.table.Update(e, idx); err != nil {
			return err
		}

	case DeleteErase:
		// A file slot becomes the empty marker for its own region; the
		// entry's identity is gone.
		slot := record.NewBlank()
		if e.Kind == KindFile && e.Size > 0 {
			slot = record.NewEmpty(e.Offset, record.Sector(e.Size))
		}
		if err := a.table.Update(slot, idx); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: unknown delete mode %d", ErrBadFormat, m)
	}

	a.log.Debug("entry removed", "path", normalize(name), "mode", m)
	return nil
}

// releaseFileRegion registers the file's data region as an empty hole
// and returns the refreshed entry. The entry is refetched after the
// blank reservation because growing the slot table can relocate the
// file. The caller holds the archive mutex.
func (a *Archive) releaseFileRegion(idx int) (record.Entry, error) {
	if err := a.table.EnsureBlanks(1); err != nil {
		return record.Entry{}, err
	}
	e := a.table.Entry(idx)
	if e.Size == 0 {
		return e, nil
	}
	bidx, _ := a.table.GetBlank()
	empty := record.NewEmpty(e.Offset, record.Sector(e.Size))
	if err := a.table.Update(empty, bidx); err != nil {
		return record.Entry{}, err
	}
	return e, nil
}

// Move moves the entry at the given path into another directory.
func (a *Archive) Move(name, todir string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	idx, e, err := a.findEntry(name)
	if err != nil {
		return err
	}
	todir = normalize(todir)
	pid, err := a.parentID(todir)
	if err != nil {
		return err
	}
	if e.Kind == KindDir {
		own, _ := a.table.Hierarchy().Path(e.ID)
		if todir == own || strings.HasPrefix(todir, own+"/") {
			return fmt.Errorf("%w: cannot move %s beneath itself",
				ErrBadFormat, own)
		}
	}
	if err := a.available(e.Name, pid); err != nil {
		return err
	}

	e.Parent = pid
	e.Modified = record.Now()
	return a.table.Update(e, idx)
}

// Rename changes the base name of the entry at the given path. The new
// name must not contain a path separator.
func (a *Archive) Rename(name, newname string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	if strings.Contains(newname, "/") {
		return fmt.Errorf("%w: name %q contains a separator", ErrBadFormat, newname)
	}
	if err := record.ValidateName(newname); err != nil {
		return err
	}
	idx, e, err := a.findEntry(name)
	if err != nil {
		return err
	}
	if err := a.available(newname, e.Parent); err != nil {
		return err
	}

	e.Name = newname
	e.Modified = record.Now()
	return a.table.Update(e, idx)
}

// Chmod changes entry attributes. Unlike other operations it also
// resolves soft-deleted entries, so a deleted file can be restored with
// ChmodWithDeleted(false).
func (a *Archive) Chmod(name string, opts ...ChmodOption) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	var cfg chmodConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	dir, base := splitPath(name)
	pid, err := a.parentID(dir)
	if err != nil {
		return err
	}
	idx := -1
	var e Entry
	for _, m := range a.table.Search(store.NewQuery("").
		Parent(store.Include, pid)) {
		if m.Entry.Name == base {
			idx, e = m.Index, m.Entry
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, normalize(name))
	}

	if cfg.owner != nil {
		e.Owner = *cfg.owner
	}
	if cfg.deleted != nil {
		e.Deleted = *cfg.deleted
	}
	e.Modified = record.Now()
	return a.table.Update(e, idx)
}

// IsDir reports whether a live directory exists at the given path.
func (a *Archive) IsDir(name string) bool {
	return a.isKind(name, KindDir)
}

// IsFile reports whether a live file exists at the given path.
func (a *Archive) IsFile(name string) bool {
	return a.isKind(name, KindFile)
}

// IsLink reports whether a live link exists at the given path.
func (a *Archive) IsLink(name string) bool {
	return a.isKind(name, KindLink)
}

func (a *Archive) isKind(name string, kind Kind) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	_, e, err := a.findEntry(name)
	return err == nil && e.Kind == kind
}
