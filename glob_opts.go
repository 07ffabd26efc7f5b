package ar7

import (
	"time"

	"github.com/google/uuid"
)

type globConfig struct {
	kinds    []Kind
	id       *uuid.UUID
	owner    *uuid.UUID
	created  *timeBound
	modified *timeBound
	deleted  *bool
}

type timeBound struct {
	ref   time.Time
	after bool
}

// GlobOption adds a constraint to a Glob search.
type GlobOption func(*globConfig)

// GlobWithKind restricts matches to the given entry kinds. The default
// matches files, directories, and links.
func GlobWithKind(kinds ...Kind) GlobOption {
	return func(c *globConfig) {
		c.kinds = kinds
	}
}

// GlobWithID restricts matches to the entry with the given id.
func GlobWithID(id uuid.UUID) GlobOption {
	return func(c *globConfig) {
		c.id = &id
	}
}

// GlobWithOwner restricts matches to entries owned by the given id.
func GlobWithOwner(id uuid.UUID) GlobOption {
	return func(c *globConfig) {
		c.owner = &id
	}
}

// GlobWithCreatedBefore restricts matches to entries created before the
// reference time.
func GlobWithCreatedBefore(t time.Time) GlobOption {
	return func(c *globConfig) {
		c.created = &timeBound{ref: t}
	}
}

// GlobWithCreatedAfter restricts matches to entries created after the
// reference time.
func GlobWithCreatedAfter(t time.Time) GlobOption {
	return func(c *globConfig) {
		c.created = &timeBound{ref: t, after: true}
	}
}

// GlobWithModifiedBefore restricts matches to entries modified before
// the reference time.
func GlobWithModifiedBefore(t time.Time) GlobOption {
	return func(c *globConfig) {
		c.modified = &timeBound{ref: t}
	}
}

// GlobWithModifiedAfter restricts matches to entries modified after the
// reference time.
func GlobWithModifiedAfter(t time.Time) GlobOption {
	return func(c *globConfig) {
		c.modified = &timeBound{ref: t, after: true}
	}
}

// GlobWithDeleted restricts matches by the deleted flag. The default
// matches only live entries.
func GlobWithDeleted(v bool) GlobOption {
	return func(c *globConfig) {
		c.deleted = &v
	}
}
