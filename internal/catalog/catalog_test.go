package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novadb/internal/heap"
	"github.com/tuannm99/novadb/internal/record"
)

func newFile(t *testing.T, dir, name string, desc *record.TupleDesc) *heap.File {
	t.Helper()
	f, err := heap.NewFile(filepath.Join(dir, name+".dat"), desc, nil)
	require.NoError(t, err)
	return f
}

func TestCatalog_AddAndLookup(t *testing.T) {
	dir := t.TempDir()
	people := record.NewTupleDesc(record.IntCol("id"), record.StringCol("name", 8))
	scores := record.NewTupleDesc(record.IntCol("score"))

	c := New()
	pf := newFile(t, dir, "people", people)
	sf := newFile(t, dir, "scores", scores)
	c.AddTable(pf, "people")
	c.AddTable(sf, "scores")

	id, err := c.TableID("people")
	require.NoError(t, err)
	require.Equal(t, pf.ID(), id)

	name, err := c.TableName(sf.ID())
	require.NoError(t, err)
	require.Equal(t, "scores", name)

	desc, err := c.Schema(pf.ID())
	require.NoError(t, err)
	require.True(t, desc.Equals(people))

	f, err := c.File(sf.ID())
	require.NoError(t, err)
	require.Same(t, sf, f)

	ids := c.TableIDs()
	require.Len(t, ids, 2)
	require.Less(t, ids[0], ids[1])

	meta, err := c.Describe(pf.ID())
	require.NoError(t, err)
	require.Equal(t, "people", meta.Name)
	require.Equal(t, 0, meta.PageCount)
}

func TestCatalog_Unknown(t *testing.T) {
	c := New()

	_, err := c.File(1)
	require.ErrorIs(t, err, ErrNoSuchTable)
	_, err = c.Schema(1)
	require.ErrorIs(t, err, ErrNoSuchTable)
	_, err = c.TableName(1)
	require.ErrorIs(t, err, ErrNoSuchTable)
	_, err = c.TableID("nope")
	require.ErrorIs(t, err, ErrNoSuchTable)
	require.Empty(t, c.TableIDs())
}

func TestCatalog_AddTableReplaces(t *testing.T) {
	dir := t.TempDir()
	desc := record.NewTupleDesc(record.IntCol("v"))

	c := New()
	a := newFile(t, dir, "a", desc)
	b := newFile(t, dir, "b", desc)

	c.AddTable(a, "t")
	c.AddTable(b, "t")
	require.Equal(t, []uint64{b.ID()}, c.TableIDs())

	// same file re-registered under a new name drops the old name
	c.AddTable(b, "u")
	_, err := c.TableID("t")
	require.ErrorIs(t, err, ErrNoSuchTable)
	id, err := c.TableID("u")
	require.NoError(t, err)
	require.Equal(t, b.ID(), id)
}
