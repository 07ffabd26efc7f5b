package record

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSector(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), Sector(0))
	assert.Equal(t, uint64(512), Sector(1))
	assert.Equal(t, uint64(512), Sector(512))
	assert.Equal(t, uint64(1024), Sector(513))
	assert.Equal(t, uint64(3584), Sector(3100))
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateName("report.txt"))
	require.ErrorIs(t, ValidateName(""), ErrBadFormat)
	require.ErrorIs(t, ValidateName(strings.Repeat("x", NameSize+1)), ErrNameTooLong)
	require.NoError(t, ValidateName(strings.Repeat("x", NameSize)))
}

func TestHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	h := NewHeader()
	h.Owner = uuid.New()
	h.Domain = uuid.New()
	h.Node = uuid.New()
	h.Title = "vault"
	h.Type = 3
	h.Role = 1
	h.Use = 2
	h.Entries = 24

	data := h.Marshal()
	require.Len(t, data, HeaderSize)
	assert.Equal(t, []byte(Magic), data[:8])

	got, err := UnmarshalHeader(data)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)
	assert.Equal(t, h.Owner, got.Owner)
	assert.Equal(t, h.Domain, got.Domain)
	assert.Equal(t, h.Node, got.Node)
	assert.Equal(t, h.Title, got.Title)
	assert.Equal(t, h.Type, got.Type)
	assert.Equal(t, h.Role, got.Role)
	assert.Equal(t, h.Use, got.Use)
	assert.Equal(t, h.Entries, got.Entries)
	assert.True(t, h.Created.Equal(got.Created))
}

func TestUnmarshalHeaderRejectsBadMagic(t *testing.T) {
	t.Parallel()

	data := NewHeader().Marshal()
	data[0] = 'x'
	_, err := UnmarshalHeader(data)
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestUnmarshalHeaderRejectsShortBuffer(t *testing.T) {
	t.Parallel()

	_, err := UnmarshalHeader(make([]byte, HeaderSize-1))
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestFileEntryRoundTrip(t *testing.T) {
	t.Parallel()

	parent := uuid.New()
	var digest [DigestSize]byte
	for i := range digest {
		digest[i] = byte(i)
	}

	e, err := NewFile("notes.md", parent, 900, 2048, CompressionGzip, digest)
	require.NoError(t, err)
	e.Offset = 4096
	e.Owner = uuid.New()

	data := e.Marshal()
	require.Len(t, data, EntrySize)

	got, err := UnmarshalEntry(data)
	require.NoError(t, err)
	assert.Equal(t, KindFile, got.Kind)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, parent, got.Parent)
	assert.Equal(t, e.Owner, got.Owner)
	assert.Equal(t, uint64(4096), got.Offset)
	assert.Equal(t, uint64(900), got.Size)
	assert.Equal(t, uint64(2048), got.Length)
	assert.Equal(t, CompressionGzip, got.Compression)
	assert.Equal(t, digest, got.Digest)
	assert.Equal(t, "notes.md", got.Name)
	assert.False(t, got.Deleted)
}

func TestDirAndLinkEntries(t *testing.T) {
	t.Parallel()

	parent := uuid.New()
	d, err := NewDir("docs", parent)
	require.NoError(t, err)
	assert.Equal(t, KindDir, d.Kind)
	assert.Equal(t, parent, d.Parent)

	target := uuid.New()
	l, err := NewLink("latest", target, parent)
	require.NoError(t, err)
	assert.Equal(t, KindLink, l.Kind)
	assert.Equal(t, target, l.Owner)

	got, err := UnmarshalEntry(l.Marshal())
	require.NoError(t, err)
	assert.Equal(t, target, got.Owner)
}

func TestNewFileRejectsLongName(t *testing.T) {
	t.Parallel()

	_, err := NewFile(strings.Repeat("n", NameSize+1), uuid.Nil, 1, 1,
		CompressionNone, [DigestSize]byte{})
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestDeletedFlagSurvivesRoundTrip(t *testing.T) {
	t.Parallel()

	e, err := NewDir("gone", uuid.Nil)
	require.NoError(t, err)
	e.Deleted = true
	e.Modified = Now().Add(time.Hour).Truncate(time.Second)

	got, err := UnmarshalEntry(e.Marshal())
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.True(t, e.Modified.Equal(got.Modified))
}
