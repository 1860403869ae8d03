package heap

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
	"github.com/tuannm99/novadb/internal/storage"
)

// testPool keeps every page it hands out, so in-place page edits are seen
// by later readers the way a real buffer pool behaves.
type testPool struct {
	files map[uint64]*File
	cache map[record.PageID]storage.Page
	pins  map[record.PageID]int
	peak  int
}

func newTestPool() *testPool {
	return &testPool{
		files: make(map[uint64]*File),
		cache: make(map[record.PageID]storage.Page),
		pins:  make(map[record.PageID]int),
	}
}

func (p *testPool) GetPage(_ storage.TxID, pid record.PageID, _ storage.Perm) (storage.Page, error) {
	pg, ok := p.cache[pid]
	if !ok {
		var err error
		pg, err = p.files[pid.TableID].ReadPage(pid)
		if err != nil {
			return nil, err
		}
		p.cache[pid] = pg
	}
	p.pins[pid]++
	p.peak = max(p.peak, p.pinned())
	return pg, nil
}

func (p *testPool) Unpin(pg storage.Page, _ bool) error {
	p.pins[pg.ID()]--
	return nil
}

func (p *testPool) pinned() int {
	n := 0
	for _, c := range p.pins {
		n += c
	}
	return n
}

func newTestFile(t *testing.T, opts ...Option) (*File, *testPool) {
	t.Helper()
	pool := newTestPool()
	f, err := NewFile(filepath.Join(t.TempDir(), "t.dat"), testDesc(), pool, opts...)
	require.NoError(t, err)
	pool.files[f.ID()] = f
	return f, pool
}

func scanAll(t *testing.T, it storage.DBFileIterator) []*record.Tuple {
	t.Helper()
	var out []*record.Tuple
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			return out
		}
		tup, err := it.Next()
		require.NoError(t, err)
		out = append(out, tup)
	}
}

func asStrings(tuples []*record.Tuple) []string {
	out := make([]string, len(tuples))
	for i, t := range tuples {
		out[i] = t.String()
	}
	slices.Sort(out)
	return out
}

// inScanOrder renders tuples with their record ids, keeping iteration order.
func inScanOrder(tuples []*record.Tuple) []string {
	out := make([]string, len(tuples))
	for i, t := range tuples {
		out[i] = t.RID.String() + " " + t.String()
	}
	return out
}

func TestFile_EmptyScan(t *testing.T) {
	f, pool := newTestFile(t)

	n, err := f.NumPages()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	it := f.Iterator(storage.NoTx)
	require.NoError(t, it.Open())
	require.Empty(t, scanAll(t, it))

	_, err = it.Next()
	require.ErrorIs(t, err, dberr.ErrNoMoreTuples)

	it.Close()
	it.Close()
	require.Zero(t, pool.pinned())
}

func TestFile_InsertScan(t *testing.T) {
	f, pool := newTestFile(t)
	d := f.Desc()
	tx := storage.NewTxID()

	for _, r := range []*record.Tuple{row(d, 1, "aaaa"), row(d, 2, "bbbb"), row(d, 3, "cccc")} {
		pages, err := f.InsertTuple(tx, r)
		require.NoError(t, err)
		require.Len(t, pages, 1)
		require.NotNil(t, r.RID)
		require.Equal(t, f.ID(), r.RID.PageID.TableID)
	}

	n, err := f.NumPages()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	it := f.Iterator(tx)
	require.NoError(t, it.Open())
	require.Equal(t, []string{"(1, aaaa)", "(2, bbbb)", "(3, cccc)"}, asStrings(scanAll(t, it)))
	it.Close()
	require.Zero(t, pool.pinned())
}

func TestFile_DeleteScanReusesSlot(t *testing.T) {
	f, _ := newTestFile(t)
	d := f.Desc()
	tx := storage.NewTxID()

	for _, r := range []*record.Tuple{row(d, 1, "aaaa"), row(d, 2, "bbbb"), row(d, 3, "cccc")} {
		_, err := f.InsertTuple(tx, r)
		require.NoError(t, err)
	}

	it := f.Iterator(tx)
	require.NoError(t, it.Open())
	var victim *record.Tuple
	for _, tup := range scanAll(t, it) {
		if tup.String() == "(2, bbbb)" {
			victim = tup
		}
	}
	it.Close()
	require.NotNil(t, victim)
	freed := *victim.RID

	_, err := f.DeleteTuple(tx, victim)
	require.NoError(t, err)

	require.NoError(t, it.Open())
	require.Equal(t, []string{"(1, aaaa)", "(3, cccc)"}, asStrings(scanAll(t, it)))
	it.Close()

	_, err = f.DeleteTuple(tx, &record.Tuple{Desc: d, Fields: victim.Fields, RID: &freed})
	require.ErrorIs(t, err, dberr.ErrTupleNotFound)

	fourth := row(d, 4, "dddd")
	_, err = f.InsertTuple(tx, fourth)
	require.NoError(t, err)
	require.Equal(t, freed, *fourth.RID)

	n, err := f.NumPages()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestFile_GrowsOnePageAtATime(t *testing.T) {
	f, pool := newTestFile(t, WithPageSize(64)) // 5 slots per page
	d := f.Desc()

	for i := range 12 {
		_, err := f.InsertTuple(storage.NoTx, row(d, int32(i), "r"))
		require.NoError(t, err)
	}

	n, err := f.NumPages()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	size, err := f.SizeBytes()
	require.NoError(t, err)
	require.Equal(t, int64(3*64), size)

	it := f.Iterator(storage.NoTx)
	require.NoError(t, it.Open())
	got := scanAll(t, it)
	require.Len(t, got, 12)
	for i, tup := range got {
		require.Equal(t, int32(i), tup.Fields[0].(record.IntField).Value)
	}

	// page order then slot order, one pinned page at a time
	require.LessOrEqual(t, pool.peak, 1)

	require.NoError(t, it.Rewind())
	require.Equal(t, inScanOrder(got), inScanOrder(scanAll(t, it)))
	it.Close()
	require.Zero(t, pool.pinned())
}

func TestFile_RewindRepeatsPageSlotOrder(t *testing.T) {
	f, _ := newTestFile(t, WithPageSize(64))
	d := f.Desc()

	for i := range 10 {
		_, err := f.InsertTuple(storage.NoTx, row(d, int32(i), "r"))
		require.NoError(t, err)
	}
	hole := &record.Tuple{Desc: d, RID: &record.RecordID{PageID: record.PageID{TableID: f.ID(), PageNo: 0}, Slot: 2}}
	_, err := f.DeleteTuple(storage.NoTx, hole)
	require.NoError(t, err)
	late := row(d, 100, "late")
	_, err = f.InsertTuple(storage.NoTx, late)
	require.NoError(t, err)
	require.Equal(t, 2, late.RID.Slot)

	it := f.Iterator(storage.NoTx)
	require.NoError(t, it.Open())
	first := scanAll(t, it)
	var ids []int32
	for _, tup := range first {
		ids = append(ids, tup.Fields[0].(record.IntField).Value)
	}
	require.Equal(t, []int32{0, 1, 100, 3, 4, 5, 6, 7, 8, 9}, ids)

	for range 2 {
		require.NoError(t, it.Rewind())
		require.Equal(t, inScanOrder(first), inScanOrder(scanAll(t, it)))
	}
	it.Close()
}

func TestFile_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.dat")

	pool := newTestPool()
	f, err := NewFile(path, testDesc(), pool, WithPageSize(64))
	require.NoError(t, err)
	pool.files[f.ID()] = f
	for i := range 7 {
		_, err := f.InsertTuple(storage.NoTx, row(f.Desc(), int32(i), "p"))
		require.NoError(t, err)
	}

	pool2 := newTestPool()
	g, err := NewFile(path, testDesc(), pool2, WithPageSize(64))
	require.NoError(t, err)
	pool2.files[g.ID()] = g
	require.Equal(t, f.ID(), g.ID())

	it := g.Iterator(storage.NoTx)
	require.NoError(t, it.Open())
	require.Len(t, scanAll(t, it), 7)
	it.Close()

	other, err := NewFile(filepath.Join(dir, "other.dat"), testDesc(), newTestPool())
	require.NoError(t, err)
	require.NotEqual(t, f.ID(), other.ID())
}

func TestFile_TrailingPartialPageIgnored(t *testing.T) {
	f, _ := newTestFile(t, WithPageSize(64))
	_, err := f.InsertTuple(storage.NoTx, row(f.Desc(), 1, "a"))
	require.NoError(t, err)

	fh, err := os.OpenFile(f.Path(), os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = fh.Write(make([]byte, 10))
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	n, err := f.NumPages()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	it := f.Iterator(storage.NoTx)
	require.NoError(t, it.Open())
	require.Len(t, scanAll(t, it), 1)
	it.Close()
}

func TestFile_InsertSchemaMismatch(t *testing.T) {
	f, _ := newTestFile(t)
	other := record.NewTupleDesc(record.IntCol("id"))

	_, err := f.InsertTuple(storage.NoTx, record.MustTuple(other, record.NewIntField(1)))
	require.ErrorIs(t, err, dberr.ErrSchemaMismatch)

	n, err := f.NumPages()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestFile_DeleteErrors(t *testing.T) {
	f, _ := newTestFile(t)
	d := f.Desc()

	_, err := f.DeleteTuple(storage.NoTx, row(d, 1, "a"))
	require.ErrorIs(t, err, dberr.ErrTupleNotFound)

	foreign := row(d, 1, "a")
	foreign.RID = &record.RecordID{PageID: record.PageID{TableID: f.ID() + 1}, Slot: 0}
	_, err = f.DeleteTuple(storage.NoTx, foreign)
	require.ErrorIs(t, err, dberr.ErrTupleNotFound)

	pastEnd := row(d, 1, "a")
	pastEnd.RID = &record.RecordID{PageID: record.PageID{TableID: f.ID(), PageNo: 3}, Slot: 0}
	_, err = f.DeleteTuple(storage.NoTx, pastEnd)
	require.ErrorIs(t, err, dberr.ErrTupleNotFound)
}

func TestIterator_States(t *testing.T) {
	f, _ := newTestFile(t)
	_, err := f.InsertTuple(storage.NoTx, row(f.Desc(), 1, "a"))
	require.NoError(t, err)

	it := NewIterator(f, storage.NoTx)
	require.Equal(t, iterClosed, it.state)

	_, err = it.HasNext()
	require.ErrorIs(t, err, dberr.ErrIteratorNotOpen)
	_, err = it.Next()
	require.ErrorIs(t, err, dberr.ErrIteratorNotOpen)
	require.ErrorIs(t, it.Rewind(), dberr.ErrIteratorNotOpen)

	require.NoError(t, it.Open())
	require.Equal(t, iterOpen, it.state)
	_, err = it.Next()
	require.NoError(t, err)

	ok, err := it.HasNext()
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, iterExhausted, it.state)

	require.NoError(t, it.Rewind())
	require.Equal(t, iterOpen, it.state)
	require.Len(t, scanAll(t, it), 1)

	it.Close()
	require.Equal(t, iterClosed, it.state)
	_, err = it.HasNext()
	require.ErrorIs(t, err, dberr.ErrIteratorNotOpen)
}

func TestIterator_SeesPagesAppendedMidScan(t *testing.T) {
	f, _ := newTestFile(t, WithPageSize(64))
	d := f.Desc()
	for i := range 5 {
		_, err := f.InsertTuple(storage.NoTx, row(d, int32(i), "a"))
		require.NoError(t, err)
	}

	it := f.Iterator(storage.NoTx)
	require.NoError(t, it.Open())
	_, err := it.Next()
	require.NoError(t, err)

	_, err = f.InsertTuple(storage.NoTx, row(d, 99, "new"))
	require.NoError(t, err)

	require.Len(t, scanAll(t, it), 5)
	it.Close()
}

func TestNewFile_RejectsUnfittableSchema(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "x.dat"),
		record.NewTupleDesc(record.StringCol("big", 100)), newTestPool(), WithPageSize(64))
	require.ErrorIs(t, err, dberr.ErrSchemaMismatch)
}
