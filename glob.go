package ar7

import (
	"path"
	"slices"

	"github.com/kastell/ar7/internal/store"
)

// Glob returns the sorted paths of all entries matching the glob
// pattern ("*" and "?" wildcards in the name, optionally preceded by a
// directory component that is matched against directory paths).
// Entries whose parent directory cannot be resolved are skipped.
func (a *Archive) Glob(pattern string, opts ...GlobOption) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	var cfg globConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	q := store.NewQuery(pattern)
	if len(cfg.kinds) > 0 {
		q.Kind(cfg.kinds...)
	}
	if cfg.id != nil {
		q.ID(*cfg.id)
	}
	if cfg.owner != nil {
		q.Owner(store.Include, *cfg.owner)
	}
	if cfg.created != nil {
		q.Created(timeOp(cfg.created), cfg.created.ref)
	}
	if cfg.modified != nil {
		q.Modified(timeOp(cfg.modified), cfg.modified.ref)
	}
	if cfg.deleted != nil {
		q.Deleted(*cfg.deleted)
	} else {
		q.Deleted(false)
	}

	hier := a.table.Hierarchy()
	var out []string
	for _, m := range a.table.Search(q) {
		dir, ok := hier.Path(m.Entry.Parent)
		if !ok {
			continue
		}
		out = append(out, path.Join(dir, m.Entry.Name))
	}
	slices.Sort(out)
	return out, nil
}

func timeOp(b *timeBound) store.TimeOp {
	if b.after {
		return store.TimeAfter
	}
	return store.TimeBefore
}
