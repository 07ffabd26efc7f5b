package ar7

import (
	"time"

	"github.com/google/uuid"
)

type fileConfig struct {
	id          uuid.UUID
	owner       uuid.UUID
	created     time.Time
	modified    time.Time
	compression Compression
}

// FileOption configures a file created with Mkfile.
type FileOption func(*fileConfig)

// FileWithID sets the entry id instead of generating one. Used when a
// file must keep its identity across archives.
func FileWithID(id uuid.UUID) FileOption {
	return func(c *fileConfig) {
		c.id = id
	}
}

// FileWithOwner sets the file owner id.
func FileWithOwner(id uuid.UUID) FileOption {
	return func(c *fileConfig) {
		c.owner = id
	}
}

// FileWithCreated sets the creation timestamp instead of the current
// time.
func FileWithCreated(t time.Time) FileOption {
	return func(c *fileConfig) {
		c.created = t
	}
}

// FileWithModified sets the modification timestamp instead of the
// current time.
func FileWithModified(t time.Time) FileOption {
	return func(c *fileConfig) {
		c.modified = t
	}
}

// FileWithCompression selects the payload codec. The default stores the
// payload uncompressed.
func FileWithCompression(comp Compression) FileOption {
	return func(c *fileConfig) {
		c.compression = comp
	}
}

type saveConfig struct {
	modified    time.Time
	compression *Compression
}

// SaveOption configures a payload rewrite.
type SaveOption func(*saveConfig)

// SaveWithModified sets the modification timestamp instead of the
// current time.
func SaveWithModified(t time.Time) SaveOption {
	return func(c *saveConfig) {
		c.modified = t
	}
}

// SaveWithCompression switches the file to a different payload codec.
// The default keeps the file's current codec.
func SaveWithCompression(comp Compression) SaveOption {
	return func(c *saveConfig) {
		c.compression = &comp
	}
}

type chmodConfig struct {
	owner   *uuid.UUID
	deleted *bool
}

// ChmodOption selects which attributes Chmod changes.
type ChmodOption func(*chmodConfig)

// ChmodWithOwner changes the entry owner id.
func ChmodWithOwner(id uuid.UUID) ChmodOption {
	return func(c *chmodConfig) {
		c.owner = &id
	}
}

// ChmodWithDeleted sets or clears the deleted flag. Clearing it
// restores a soft-deleted entry.
func ChmodWithDeleted(v bool) ChmodOption {
	return func(c *chmodConfig) {
		c.deleted = &v
	}
}
