package cipherio

import (
	"bytes"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret(t *testing.T) []byte {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	return secret
}

func TestCreateWriteReadBack(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	secret := testSecret(t)

	s, err := Create(path, secret)
	require.NoError(t, err)

	payload := []byte("the quick brown fox")
	n, err := s.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	assert.Equal(t, int64(len(payload)), s.Length())

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got := make([]byte, len(payload))
	_, err = io.ReadFull(s, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, s.Close())
}

func TestReopenPersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	secret := testSecret(t)

	payload := make([]byte, 3*PageSize+123)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	s, err := Create(path, secret)
	require.NoError(t, err)
	_, err = s.Write(payload)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, secret)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), s.Length())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size()%BlockSize)
	assert.Equal(t, int64(4*BlockSize), info.Size())
}

func TestSeekAndOverwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	s, err := Create(path, testSecret(t))
	require.NoError(t, err)

	_, err = s.Write(bytes.Repeat([]byte{'a'}, 2*PageSize))
	require.NoError(t, err)

	// Overwrite straddling the page boundary.
	_, err = s.Seek(int64(PageSize-2), io.SeekStart)
	require.NoError(t, err)
	_, err = s.Write([]byte("zzzz"))
	require.NoError(t, err)

	_, err = s.Seek(int64(PageSize-3), io.SeekStart)
	require.NoError(t, err)
	got := make([]byte, 6)
	_, err = io.ReadFull(s, got)
	require.NoError(t, err)
	assert.Equal(t, []byte("azzzza"), got)

	// Length is unchanged by an interior overwrite.
	assert.Equal(t, int64(2*PageSize), s.Length())

	end, err := s.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(2*PageSize), end)

	_, err = s.Seek(-1, io.SeekStart)
	require.Error(t, err)

	require.NoError(t, s.Close())
}

func TestReadPastLengthIsEOF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	s, err := Create(path, testSecret(t))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Write([]byte("abc"))
	require.NoError(t, err)

	_, err = s.Seek(3, io.SeekStart)
	require.NoError(t, err)
	_, err = s.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	secret := testSecret(t)
	s, err := Create(path, secret)
	require.NoError(t, err)

	payload := make([]byte, 5*PageSize)
	_, err = rand.Read(payload)
	require.NoError(t, err)
	_, err = s.Write(payload)
	require.NoError(t, err)

	cut := int64(2*PageSize + 100)
	require.NoError(t, s.Truncate(cut))
	assert.Equal(t, cut, s.Length())
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3*BlockSize), info.Size())

	s, err = Open(path, secret)
	require.NoError(t, err)
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, payload[:cut], got)
	require.NoError(t, s.Close())
}

func TestTruncateToZero(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	secret := testSecret(t)
	s, err := Create(path, secret)
	require.NoError(t, err)
	_, err = s.Write([]byte("doomed"))
	require.NoError(t, err)
	require.NoError(t, s.Truncate(0))
	require.NoError(t, s.Close())

	s, err = Open(path, secret)
	require.NoError(t, err)
	assert.Zero(t, s.Length())
	require.NoError(t, s.Close())
}

func TestWrongSecretFailsAuthentication(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	s, err := Create(path, testSecret(t))
	require.NoError(t, err)
	_, err = s.Write([]byte("confidential"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path, testSecret(t))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestTamperedBlockFailsAuthentication(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	secret := testSecret(t)
	s, err := Create(path, secret)
	require.NoError(t, err)
	_, err = s.Write([]byte("confidential"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[100] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = Open(path, secret)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestSecondOpenIsLockedOut(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	secret := testSecret(t)
	s, err := Create(path, secret)
	require.NoError(t, err)
	defer s.Close()

	_, err = Open(path, secret)
	require.ErrorIs(t, err, ErrLocked)
}

func TestCreateRefusesExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	secret := testSecret(t)
	s, err := Create(path, secret)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Create(path, secret)
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.a7")
	s, err := Create(path, testSecret(t))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Write([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
}
