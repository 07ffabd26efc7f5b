package ar7

import (
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kastell/ar7/internal/cipherio"
	"github.com/kastell/ar7/internal/record"
	"github.com/kastell/ar7/internal/store"
)

// startSlots is the number of blank entry slots a fresh archive is
// provisioned with.
const startSlots = 8

// Archive is an open encrypted archive. All operations are serialized
// under an internal mutex, so an Archive is safe for concurrent use.
type Archive struct {
	mu     sync.Mutex
	stream *cipherio.Stream
	table  *store.Table
	header record.Header
	mode   DeleteMode
	log    *slog.Logger
	closed bool
}

// Setup creates a new archive file at name, keyed from the given
// secret. The file must not already exist. Header fields such as owner
// and title are set through options.
func Setup(name string, secret []byte, opts ...SetupOption) (*Archive, error) {
	cfg := setupConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	stream, err := cipherio.Create(name, secret)
	if err != nil {
		return nil, err
	}

	header := record.NewHeader()
	header.Owner = cfg.owner
	header.Node = cfg.node
	header.Domain = cfg.domain
	header.Title = cfg.title
	header.Type = cfg.typ
	header.Role = cfg.role
	header.Use = cfg.use
	header.Entries = startSlots

	a := &Archive{
		stream: stream,
		header: header,
		mode:   DeleteErase,
		log:    cfg.logger,
	}
	a.table = store.New(stream, a.patchEntryCount)

	if err := a.writeHeader(); err != nil {
		stream.Close()
		return nil, err
	}
	blank := record.NewBlank()
	for i := 0; i < startSlots; i++ {
		if _, err := stream.Write(blank.Marshal()); err != nil {
			stream.Close()
			return nil, err
		}
	}
	if err := a.table.Load(startSlots); err != nil {
		stream.Close()
		return nil, err
	}
	if err := stream.Flush(); err != nil {
		stream.Close()
		return nil, err
	}

	a.log.Info("archive created", "name", name, "id", header.ID)
	return a, nil
}

// Open opens an existing archive file keyed from the given secret.
func Open(name string, secret []byte, opts ...OpenOption) (*Archive, error) {
	cfg := openConfig{
		mode:   DeleteErase,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	stream, err := cipherio.Open(name, secret)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, record.HeaderSize)
	if _, err := io.ReadFull(stream, buf); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: short header: %v", ErrBadFormat, err)
	}
	header, err := record.UnmarshalHeader(buf)
	if err != nil {
		stream.Close()
		return nil, err
	}
	if header.Major > 1 {
		stream.Close()
		return nil, fmt.Errorf("%w: unsupported version %d.%d",
			ErrBadFormat, header.Major, header.Minor)
	}

	a := &Archive{
		stream: stream,
		header: header,
		mode:   cfg.mode,
		log:    cfg.logger,
	}
	a.table = store.New(stream, a.patchEntryCount)
	if err := a.table.Load(int(header.Entries)); err != nil {
		stream.Close()
		return nil, err
	}

	a.log.Info("archive opened", "name", name, "id", header.ID,
		"entries", header.Entries)
	return a, nil
}

// Close flushes and closes the archive. Close is idempotent.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.stream.Close(); err != nil {
		return err
	}
	a.log.Info("archive closed", "id", a.header.ID)
	return nil
}

// Stats returns a copy of the archive header.
func (a *Archive) Stats() (Header, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return Header{}, ErrClosed
	}
	return a.header, nil
}

// Info returns the index entry at the given path.
func (a *Archive) Info(name string) (Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return Entry{}, ErrClosed
	}
	_, e, err := a.findEntry(name)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// patchEntryCount rewrites the header after the slot table grows. The
// caller holds the archive mutex.
func (a *Archive) patchEntryCount(entries uint32) error {
	a.header.Entries = entries
	return a.writeHeader()
}

func (a *Archive) writeHeader() error {
	if _, err := a.stream.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := a.stream.Write(a.header.Marshal()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// normalize cleans a path and forces it absolute.
func normalize(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return path.Clean(name)
}

// splitPath returns the parent directory and base name of a path.
func splitPath(name string) (dir, base string) {
	name = normalize(name)
	return path.Dir(name), path.Base(name)
}

// parentID resolves the directory part of a path to its entry id.
func (a *Archive) parentID(dir string) (uuid.UUID, error) {
	pid, ok := a.table.Hierarchy().ID(dir)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
	}
	return pid, nil
}

// findEntry resolves a path to its live entry. When kinds are given and
// the entry matches the path but not the kind, ErrWrongKind is
// returned; a missing path is ErrNotFound.
func (a *Archive) findEntry(name string, kinds ...Kind) (int, Entry, error) {
	dir, base := splitPath(name)
	pid, err := a.parentID(dir)
	if err != nil {
		return 0, Entry{}, err
	}
	q := store.NewQuery("").
		Parent(store.Include, pid).
		Deleted(false)
	for _, m := range a.table.Search(q) {
		if m.Entry.Name != base {
			continue
		}
		if len(kinds) > 0 && !kindIn(m.Entry.Kind, kinds) {
			return 0, Entry{}, fmt.Errorf("%w: %s is a %s",
				ErrWrongKind, normalize(name), m.Entry.Kind)
		}
		return m.Index, m.Entry, nil
	}
	return 0, Entry{}, fmt.Errorf("%w: %s", ErrNotFound, normalize(name))
}

func kindIn(k Kind, kinds []Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// available reports an error if the name is taken in the directory.
func (a *Archive) available(base string, pid uuid.UUID) error {
	q := store.NewQuery("").
		Parent(store.Include, pid).
		Deleted(false)
	for _, m := range a.table.Search(q) {
		if m.Entry.Name == base {
			return fmt.Errorf("%w: %s", ErrExists, base)
		}
	}
	return nil
}

// followLink resolves a link entry to the file it points at. The target
// id is stored in the link's owner field.
func (a *Archive) followLink(link Entry) (int, Entry, error) {
	q := store.NewQuery("").
		ID(link.Owner).
		Deleted(false)
	matches := a.table.Search(q)
	if len(matches) == 0 {
		return 0, Entry{}, fmt.Errorf("%w: broken link %s",
			ErrNotFound, link.Name)
	}
	m := matches[0]
	if m.Entry.Kind != KindFile {
		return 0, Entry{}, fmt.Errorf("%w: link %s resolves to a %s",
			ErrWrongKind, link.Name, m.Entry.Kind)
	}
	return m.Index, m.Entry, nil
}

// resolveFile finds a file at the path, following one level of link.
func (a *Archive) resolveFile(name string) (int, Entry, error) {
	idx, e, err := a.findEntry(name, KindFile, KindLink)
	if err != nil {
		return 0, Entry{}, err
	}
	if e.Kind == KindLink {
		return a.followLink(e)
	}
	return idx, e, nil
}
