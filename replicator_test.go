package ar7

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T) (*Archive, *Archive) {
	t.Helper()
	dir := t.TempDir()

	master, err := Setup(filepath.Join(dir, "master.a7"), testSecret(t))
	require.NoError(t, err)
	t.Cleanup(func() { master.Close() })

	slave, err := Setup(filepath.Join(dir, "slave.a7"), testSecret(t))
	require.NoError(t, err)
	t.Cleanup(func() { slave.Close() })

	return master, slave
}

func TestSynchronizeConvergesDisjointTrees(t *testing.T) {
	t.Parallel()

	master, slave := newPair(t)
	_, err := master.Mkdir("/only")
	require.NoError(t, err)
	_, err = master.Mkdir("/only/master")
	require.NoError(t, err)
	_, err = master.Mkfile("/only/master/a.txt", []byte("from master"))
	require.NoError(t, err)
	_, err = slave.Mkfile("/b.txt", []byte("from slave"))
	require.NoError(t, err)

	ops, err := NewReplicator(master, slave).Synchronize(false)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	got, err := slave.Load("/only/master/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("from master"), got)

	got, err = master.Load("/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("from slave"), got)

	// Identity and timestamps carry over.
	me, err := master.Info("/only/master/a.txt")
	require.NoError(t, err)
	se, err := slave.Info("/only/master/a.txt")
	require.NoError(t, err)
	assert.Equal(t, me.ID, se.ID)
	assert.True(t, me.Modified.Equal(se.Modified))

	// Both sides now list the same paths. Directories only travel as
	// ancestors of replicated files, so an empty directory seeded on
	// one side would stay local.
	mg, err := master.Glob("*")
	require.NoError(t, err)
	sg, err := slave.Glob("*")
	require.NoError(t, err)
	assert.Equal(t, mg, sg)

	// A second pass finds nothing to do.
	ops, err = NewReplicator(master, slave).Synchronize(false)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestSynchronizeNewerSideWins(t *testing.T) {
	t.Parallel()

	master, slave := newPair(t)
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := old.Add(48 * time.Hour)

	_, err := master.Mkfile("/f", []byte("old"), FileWithModified(old))
	require.NoError(t, err)
	_, err = slave.Mkfile("/f", []byte("new"), FileWithModified(newer))
	require.NoError(t, err)

	ops, err := NewReplicator(master, slave).Synchronize(false)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, ActionUpdate, ops[0].Action)
	assert.True(t, ops[0].Pull)

	got, err := master.Load("/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestSynchronizeSkipsEqualTimestamps(t *testing.T) {
	t.Parallel()

	master, slave := newPair(t)
	stamp := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := master.Mkfile("/same", []byte("left"), FileWithModified(stamp))
	require.NoError(t, err)
	_, err = slave.Mkfile("/same", []byte("right"), FileWithModified(stamp))
	require.NoError(t, err)

	ops, err := NewReplicator(master, slave).Synchronize(false)
	require.NoError(t, err)
	assert.Empty(t, ops)

	got, err := slave.Load("/same")
	require.NoError(t, err)
	assert.Equal(t, []byte("right"), got)
}

func TestSynchronizePropagatesDeletion(t *testing.T) {
	t.Parallel()

	master, slave := newPair(t)
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := master.Mkfile("/gone", []byte("x"), FileWithModified(old))
	require.NoError(t, err)
	_, err = slave.Mkfile("/gone", []byte("x"), FileWithModified(old))
	require.NoError(t, err)

	// The soft delete stamps a newer modification time on the master.
	require.NoError(t, master.Remove("/gone", DeleteSoft))

	ops, err := NewReplicator(master, slave).Synchronize(false)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, ActionDelete, ops[0].Action)
	assert.False(t, slave.IsFile("/gone"))
}

func TestSynchronizeModifyRestamps(t *testing.T) {
	t.Parallel()

	master, slave := newPair(t)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := master.Mkfile("/f", []byte("x"), FileWithModified(old))
	require.NoError(t, err)

	_, err = NewReplicator(master, slave).Synchronize(true)
	require.NoError(t, err)

	se, err := slave.Info("/f")
	require.NoError(t, err)
	assert.True(t, se.Modified.After(old))
}

func TestPushIsOneDirectional(t *testing.T) {
	t.Parallel()

	master, slave := newPair(t)
	_, err := master.Mkfile("/m.txt", []byte("m"))
	require.NoError(t, err)
	_, err = slave.Mkfile("/s.txt", []byte("s"))
	require.NoError(t, err)

	ops, err := NewReplicator(master, slave).Push(false)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "/m.txt", ops[0].Path)

	assert.True(t, slave.IsFile("/m.txt"))
	assert.False(t, master.IsFile("/s.txt"))
}

func TestDifferenceDoesNotApply(t *testing.T) {
	t.Parallel()

	master, slave := newPair(t)
	_, err := master.Mkfile("/pending", []byte("x"))
	require.NoError(t, err)

	ops, err := NewReplicator(master, slave).Difference()
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, ActionCreate, ops[0].Action)
	assert.False(t, slave.IsFile("/pending"))
}
