package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kastell/ar7/internal/record"
)

// Hierarchy is the derived bidirectional mapping between directory
// paths and directory entry ids. The root path "/" maps to the zero id.
// It is rebuilt from the entry table at load time and kept in sync
// incrementally as directory entries change.
type Hierarchy struct {
	paths map[string]uuid.UUID
	ids   map[uuid.UUID]string
}

func newHierarchy() *Hierarchy {
	h := &Hierarchy{}
	h.reset()
	return h
}

func (h *Hierarchy) reset() {
	h.paths = map[string]uuid.UUID{"/": uuid.Nil}
	h.ids = map[uuid.UUID]string{uuid.Nil: "/"}
}

// ID resolves a directory path to its entry id.
func (h *Hierarchy) ID(path string) (uuid.UUID, bool) {
	id, ok := h.paths[path]
	return id, ok
}

// Path resolves a directory entry id to its full path.
func (h *Hierarchy) Path(id uuid.UUID) (string, bool) {
	p, ok := h.ids[id]
	return p, ok
}

// PathMap exposes the live path map for query expansion. Callers must
// not mutate it.
func (h *Hierarchy) PathMap() map[string]uuid.UUID {
	return h.paths
}

// Add registers a single directory entry whose parent is already
// mapped. Deleted directories are skipped.
func (h *Hierarchy) Add(e record.Entry) error {
	if e.Deleted {
		return nil
	}
	base, ok := h.ids[e.Parent]
	if !ok {
		return fmt.Errorf("%w: directory %s has unresolved parent %s", ErrCorruptIndex, e.ID, e.Parent)
	}
	p := joinPath(base, e.Name)
	h.paths[p] = e.ID
	h.ids[e.ID] = p
	return nil
}

// Remove unregisters a directory entry.
func (h *Hierarchy) Remove(e record.Entry) {
	if p, ok := h.ids[e.ID]; ok {
		delete(h.paths, p)
		delete(h.ids, e.ID)
	}
}

// rebuild reconstructs the full mapping from the given directory
// entries by walking every parent chain to the root. A parent id that
// resolves to no directory, or a parent cycle, is a corruption error.
func (h *Hierarchy) rebuild(dirs []record.Entry) error {
	h.reset()

	byID := make(map[uuid.UUID]record.Entry, len(dirs))
	for _, e := range dirs {
		byID[e.ID] = e
	}

	memo := make(map[uuid.UUID]string, len(dirs)+1)
	memo[uuid.Nil] = "/"

	var resolve func(id uuid.UUID, depth int) (string, error)
	resolve = func(id uuid.UUID, depth int) (string, error) {
		if p, ok := memo[id]; ok {
			return p, nil
		}
		if depth > len(dirs) {
			return "", fmt.Errorf("%w: parent cycle at directory %s", ErrCorruptIndex, id)
		}
		e, ok := byID[id]
		if !ok {
			return "", fmt.Errorf("%w: dangling parent reference %s", ErrCorruptIndex, id)
		}
		base, err := resolve(e.Parent, depth+1)
		if err != nil {
			return "", err
		}
		p := joinPath(base, e.Name)
		memo[id] = p
		return p, nil
	}

	for _, e := range dirs {
		if e.Deleted {
			continue
		}
		p, err := resolve(e.ID, 0)
		if err != nil {
			return err
		}
		h.paths[p] = e.ID
		h.ids[e.ID] = p
	}
	return nil
}

func joinPath(base, name string) string {
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}
