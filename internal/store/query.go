package store

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kastell/ar7/internal/record"
)

// SetOp selects include or exclude semantics for set constraints.
type SetOp int

const (
	Include SetOp = iota
	Exclude
)

// TimeOp selects the comparison for timestamp constraints.
type TimeOp int

const (
	TimeEq TimeOp = iota
	TimeBefore
	TimeAfter
)

type timeCond struct {
	op  TimeOp
	ref time.Time
}

type setCond struct {
	op  SetOp
	ids map[uuid.UUID]struct{}
}

func (c setCond) match(id uuid.UUID) bool {
	_, in := c.ids[id]
	if c.op == Exclude {
		return !in
	}
	return in
}

// Query is a declarative entry filter. Constraints are chained and
// combined with logical AND at Build time; an unset constraint places
// no restriction on that attribute. The zero-constraint query with
// pattern "*" matches every non-deleted file, directory, and link.
type Query struct {
	kinds    []record.Kind
	namePat  *regexp.Regexp
	dirPat   *regexp.Regexp
	id       *uuid.UUID
	parent   *setCond
	owner    *setCond
	created  *timeCond
	modified *timeCond
	deleted  *bool
}

// NewQuery creates a query matching files, directories, and links whose
// name matches the glob pattern. A pattern containing a directory
// component ("/docs/*.txt") constrains the parent set to directories
// whose path matches the directory component.
func NewQuery(pattern string) *Query {
	q := &Query{
		kinds: []record.Kind{record.KindFile, record.KindDir, record.KindLink},
	}
	if pattern == "*" || pattern == "" {
		return q
	}
	dir, name := path.Split(pattern)
	q.namePat = globRegexp(name)
	if dir != "" {
		// "/x" has the root itself as its directory component.
		if trimmed := strings.TrimSuffix(dir, "/"); trimmed != "" {
			dir = trimmed
		}
		q.dirPat = globRegexp(dir)
	}
	return q
}

// globRegexp compiles a glob pattern (* and ? wildcards) into an
// anchored regular expression.
func globRegexp(pattern string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*`, `.*`)
	quoted = strings.ReplaceAll(quoted, `\?`, `.`)
	return regexp.MustCompile("^" + quoted + "$")
}

// Kind restricts matches to the given entry kinds.
func (q *Query) Kind(kinds ...record.Kind) *Query {
	q.kinds = kinds
	return q
}

// ID restricts matches to the entry with the given id.
func (q *Query) ID(id uuid.UUID) *Query {
	q.id = &id
	return q
}

// Parent restricts matches by parent-id set membership.
func (q *Query) Parent(op SetOp, ids ...uuid.UUID) *Query {
	q.parent = newSetCond(op, ids)
	return q
}

// Owner restricts matches by owner-id set membership.
func (q *Query) Owner(op SetOp, ids ...uuid.UUID) *Query {
	q.owner = newSetCond(op, ids)
	return q
}

// Created restricts matches by creation time.
func (q *Query) Created(op TimeOp, ref time.Time) *Query {
	q.created = &timeCond{op: op, ref: ref}
	return q
}

// Modified restricts matches by modification time.
func (q *Query) Modified(op TimeOp, ref time.Time) *Query {
	q.modified = &timeCond{op: op, ref: ref}
	return q
}

// Deleted restricts matches by the deleted flag.
func (q *Query) Deleted(v bool) *Query {
	q.deleted = &v
	return q
}

func newSetCond(op SetOp, ids []uuid.UUID) *setCond {
	c := &setCond{op: op, ids: make(map[uuid.UUID]struct{}, len(ids))}
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
	return c
}

// Build compiles the query into a single predicate. When the pattern
// carried a directory component, the component is expanded against the
// path map into a concrete parent-id set.
func (q *Query) Build(paths map[string]uuid.UUID) func(record.Entry) bool {
	if q.dirPat != nil && q.parent == nil {
		var parents []uuid.UUID
		for p, id := range paths {
			if q.dirPat.MatchString(p) {
				parents = append(parents, id)
			}
		}
		q.parent = newSetCond(Include, parents)
	}

	return func(e record.Entry) bool {
		if !kindIn(e.Kind, q.kinds) {
			return false
		}
		if q.namePat != nil && !q.namePat.MatchString(e.Name) {
			return false
		}
		if q.id != nil && e.ID != *q.id {
			return false
		}
		if q.parent != nil && !q.parent.match(e.Parent) {
			return false
		}
		if q.owner != nil && !q.owner.match(e.Owner) {
			return false
		}
		if q.created != nil && !matchTime(e.Created, *q.created) {
			return false
		}
		if q.modified != nil && !matchTime(e.Modified, *q.modified) {
			return false
		}
		if q.deleted != nil && e.Deleted != *q.deleted {
			return false
		}
		return true
	}
}

func kindIn(k record.Kind, kinds []record.Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

func matchTime(t time.Time, c timeCond) bool {
	switch c.op {
	case TimeEq:
		return t.Equal(c.ref)
	case TimeBefore:
		return t.Before(c.ref)
	case TimeAfter:
		return t.After(c.ref)
	default:
		panic(fmt.Sprintf("store: invalid time operand %d", c.op))
	}
}
