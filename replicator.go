package ar7

import (
	"fmt"
	"log/slog"
	"path"

	"github.com/kastell/ar7/internal/record"
)

// Action is one kind of replication step.
type Action int

const (
	// ActionCreate copies a file missing on the receiving side.
	ActionCreate Action = 1 + iota

	// ActionUpdate overwrites an older payload on the receiving side.
	ActionUpdate

	// ActionDelete propagates a deletion to the receiving side.
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// SyncOp is a single replication step between two archives.
type SyncOp struct {
	// Path of the file on both sides.
	Path string

	// Action to take on the receiving side.
	Action Action

	// Pull marks a step applied to the master rather than the slave.
	Pull bool
}

// Replicator reconciles the files of two archives. Whichever side holds
// the strictly newer modification time for a path wins; files with
// equal timestamps are left alone. Soft-deleted files count as newer
// deletions and propagate as removals.
type Replicator struct {
	master *Archive
	slave  *Archive
	log    *slog.Logger
}

// NewReplicator pairs a master and a slave archive for replication.
func NewReplicator(master, slave *Archive) *Replicator {
	return &Replicator{master: master, slave: slave, log: master.log}
}

// Difference computes the replication steps that would bring both
// archives to the same tree, without applying them. Push steps come
// before pull steps.
func (r *Replicator) Difference() ([]SyncOp, error) {
	ms, err := snapshot(r.master)
	if err != nil {
		return nil, err
	}
	ss, err := snapshot(r.slave)
	if err != nil {
		return nil, err
	}
	ops := plan(ms, ss, false)
	return append(ops, plan(ss, ms, true)...), nil
}

// Synchronize applies every step Difference finds and returns them.
// With modify set, applied files are stamped with the current time
// instead of keeping the sending side's modification time.
func (r *Replicator) Synchronize(modify bool) ([]SyncOp, error) {
	return r.run(modify, true, true)
}

// Push applies only the master-to-slave half of the difference.
func (r *Replicator) Push(modify bool) ([]SyncOp, error) {
	return r.run(modify, true, false)
}

// Pull applies only the slave-to-master half of the difference.
func (r *Replicator) Pull(modify bool) ([]SyncOp, error) {
	return r.run(modify, false, true)
}

func (r *Replicator) run(modify, push, pull bool) ([]SyncOp, error) {
	ops, err := r.Difference()
	if err != nil {
		return nil, err
	}
	applied := make([]SyncOp, 0, len(ops))
	for _, op := range ops {
		if (op.Pull && !pull) || (!op.Pull && !push) {
			continue
		}
		src, dst := r.master, r.slave
		if op.Pull {
			src, dst = r.slave, r.master
		}
		if err := apply(src, dst, op, modify); err != nil {
			return nil, fmt.Errorf("replicate %s %s: %w", op.Action, op.Path, err)
		}
		r.log.Debug("replicated", "path", op.Path, "action", op.Action,
			"pull", op.Pull)
		applied = append(applied, op)
	}
	return applied, nil
}

// snapshot indexes every file entry, deleted or not, by resolved path.
func snapshot(a *Archive) (map[string]Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	hier := a.table.Hierarchy()
	out := make(map[string]Entry)
	for i := 0; i < a.table.Count(); i++ {
		e := a.table.Entry(i)
		if e.Kind != KindFile {
			continue
		}
		dir, ok := hier.Path(e.Parent)
		if !ok {
			continue
		}
		out[path.Join(dir, e.Name)] = e
	}
	return out, nil
}

// plan lists the steps that carry src's strictly newer state over to
// dst. A path can only be strictly newer on one side, so the push and
// pull plans never touch the same path.
func plan(src, dst map[string]Entry, pull bool) []SyncOp {
	var ops []SyncOp
	for p, s := range src {
		d, ok := dst[p]
		if !ok {
			if !s.Deleted {
				ops = append(ops, SyncOp{Path: p, Action: ActionCreate, Pull: pull})
			}
			continue
		}
		if !s.Modified.After(d.Modified) {
			continue
		}
		if s.Deleted {
			if !d.Deleted {
				ops = append(ops, SyncOp{Path: p, Action: ActionDelete, Pull: pull})
			}
			continue
		}
		ops = append(ops, SyncOp{Path: p, Action: ActionUpdate, Pull: pull})
	}
	return ops
}

func apply(src, dst *Archive, op SyncOp, modify bool) error {
	if op.Action == ActionDelete {
		return dst.Remove(op.Path, DeleteHard)
	}

	e, err := src.Info(op.Path)
	if err != nil {
		return err
	}
	data, err := src.Load(op.Path)
	if err != nil {
		return err
	}
	mod := e.Modified
	if modify {
		mod = record.Now()
	}

	if op.Action == ActionCreate {
		if _, err := dst.mkdirAll(path.Dir(op.Path)); err != nil {
			return err
		}
		_, err := dst.Mkfile(op.Path, data,
			FileWithID(e.ID),
			FileWithOwner(e.Owner),
			FileWithCreated(e.Created),
			FileWithModified(mod),
			FileWithCompression(e.Compression))
		return err
	}

	// An update can land on a soft-deleted copy; restore it first so
	// the payload rewrite can resolve the path.
	if !dst.IsFile(op.Path) {
		if err := dst.Chmod(op.Path, ChmodWithDeleted(false)); err != nil {
			return err
		}
	}
	return dst.Save(op.Path, data,
		SaveWithModified(mod),
		SaveWithCompression(e.Compression))
}
