package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kastell/ar7/internal/record"
)

func seedQueryTable(t *testing.T) (*Table, record.Entry, record.Entry, record.Entry) {
	t.Helper()

	table, _, _ := newTestTable(t, 16)

	docs, err := record.NewDir("docs", uuid.Nil)
	require.NoError(t, err)
	require.NoError(t, table.Add(docs, nil))

	report, err := record.NewFile("report.txt", docs.ID, 0, 5,
		record.CompressionNone, [record.DigestSize]byte{})
	require.NoError(t, err)
	require.NoError(t, table.Add(report, []byte("aaaaa")))

	image, err := record.NewFile("photo.png", uuid.Nil, 0, 5,
		record.CompressionNone, [record.DigestSize]byte{})
	require.NoError(t, err)
	require.NoError(t, table.Add(image, []byte("bbbbb")))

	return table, docs, report, image
}

func names(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Entry.Name
	}
	return out
}

func TestQueryNameGlob(t *testing.T) {
	t.Parallel()

	table, _, _, _ := seedQueryTable(t)

	assert.Equal(t, []string{"report.txt"}, names(table.Search(NewQuery("*.txt"))))
	assert.Equal(t, []string{"photo.png"}, names(table.Search(NewQuery("photo.???"))))
	assert.Equal(t, []string{"docs", "report.txt", "photo.png"},
		names(table.Search(NewQuery("*"))))
}

func TestQueryDirComponent(t *testing.T) {
	t.Parallel()

	table, _, _, _ := seedQueryTable(t)

	got := table.Search(NewQuery("/docs/*"))
	assert.Equal(t, []string{"report.txt"}, names(got))

	got = table.Search(NewQuery("/*"))
	assert.Equal(t, []string{"docs", "photo.png"}, names(got))
}

func TestQueryKindAndParent(t *testing.T) {
	t.Parallel()

	table, docs, report, _ := seedQueryTable(t)

	got := table.Search(NewQuery("*").Kind(record.KindFile))
	assert.Equal(t, []string{"report.txt", "photo.png"}, names(got))

	got = table.Search(NewQuery("*").Parent(Include, docs.ID))
	assert.Equal(t, []string{"report.txt"}, names(got))

	got = table.Search(NewQuery("*").Parent(Exclude, docs.ID))
	assert.Equal(t, []string{"docs", "photo.png"}, names(got))

	got = table.Search(NewQuery("*").ID(report.ID))
	assert.Equal(t, []string{"report.txt"}, names(got))
}

func TestQueryDeletedFlag(t *testing.T) {
	t.Parallel()

	table, _, report, _ := seedQueryTable(t)

	matches := table.Search(NewQuery("report.txt"))
	require.Len(t, matches, 1)
	e := matches[0].Entry
	e.Deleted = true
	require.NoError(t, table.Update(e, matches[0].Index))

	assert.Empty(t, table.Search(NewQuery("report.txt").Deleted(false)))
	got := table.Search(NewQuery("report.txt").Deleted(true))
	require.Len(t, got, 1)
	assert.Equal(t, report.ID, got[0].Entry.ID)
}

func TestQueryTimeBounds(t *testing.T) {
	t.Parallel()

	table, _, _, _ := seedQueryTable(t)
	cut := record.Now().Add(time.Hour)

	assert.Len(t, table.Search(NewQuery("*").Created(TimeBefore, cut)), 3)
	assert.Empty(t, table.Search(NewQuery("*").Created(TimeAfter, cut)))
	assert.Len(t, table.Search(NewQuery("*").Modified(TimeBefore, cut)), 3)
}
