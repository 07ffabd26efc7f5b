package ar7

import (
	"log/slog"

	"github.com/google/uuid"
)

type setupConfig struct {
	owner  uuid.UUID
	node   uuid.UUID
	domain uuid.UUID
	title  string
	typ    int8
	role   int8
	use    int8
	logger *slog.Logger
}

// SetupOption configures a new archive's header.
type SetupOption func(*setupConfig)

// SetupWithOwner sets the archive owner id.
func SetupWithOwner(id uuid.UUID) SetupOption {
	return func(c *setupConfig) {
		c.owner = id
	}
}

// SetupWithNode sets the id of the node the archive belongs to.
func SetupWithNode(id uuid.UUID) SetupOption {
	return func(c *setupConfig) {
		c.node = id
	}
}

// SetupWithDomain sets the id of the domain the archive belongs to.
func SetupWithDomain(id uuid.UUID) SetupOption {
	return func(c *setupConfig) {
		c.domain = id
	}
}

// SetupWithTitle sets the archive title.
func SetupWithTitle(title string) SetupOption {
	return func(c *setupConfig) {
		c.title = title
	}
}

// SetupWithType sets the application-defined archive type tag.
func SetupWithType(t int8) SetupOption {
	return func(c *setupConfig) {
		c.typ = t
	}
}

// SetupWithRole sets the application-defined archive role tag.
func SetupWithRole(r int8) SetupOption {
	return func(c *setupConfig) {
		c.role = r
	}
}

// SetupWithUse sets the application-defined archive use tag.
func SetupWithUse(u int8) SetupOption {
	return func(c *setupConfig) {
		c.use = u
	}
}

// SetupWithLogger sets the logger for archive lifecycle events.
func SetupWithLogger(l *slog.Logger) SetupOption {
	return func(c *setupConfig) {
		c.logger = l
	}
}

type openConfig struct {
	mode   DeleteMode
	logger *slog.Logger
}

// OpenOption configures how an existing archive is opened.
type OpenOption func(*openConfig)

// OpenWithDeleteMode sets the default mode Remove uses when no explicit
// mode is given. The default is DeleteErase.
func OpenWithDeleteMode(m DeleteMode) OpenOption {
	return func(c *openConfig) {
		c.mode = m
	}
}

// OpenWithLogger sets the logger for archive lifecycle events.
func OpenWithLogger(l *slog.Logger) OpenOption {
	return func(c *openConfig) {
		c.logger = l
	}
}
