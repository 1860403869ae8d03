package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
)

func testDesc() *record.TupleDesc {
	return record.NewTupleDesc(record.IntCol("id"), record.StringCol("name", 4))
}

func row(desc *record.TupleDesc, id int32, name string) *record.Tuple {
	return record.MustTuple(desc, record.NewIntField(id), record.NewStringField(name, 4))
}

func TestNumSlots(t *testing.T) {
	d := testDesc() // 12 bytes per tuple
	require.Equal(t, 337, NumSlots(d, 4096))
	require.Equal(t, 5, NumSlots(d, 64))
	require.Equal(t, 43, headerSize(337))
	require.Equal(t, 1, headerSize(5))
}

func TestPage_EmptyEncodesToZeros(t *testing.T) {
	d := testDesc()
	pid := record.PageID{TableID: 7, PageNo: 0}
	p, err := NewEmptyPage(pid, d, 64)
	require.NoError(t, err)
	require.Equal(t, 5, p.NumEmptySlots())
	require.Empty(t, p.Tuples())

	data, err := p.Encode()
	require.NoError(t, err)
	require.Equal(t, make([]byte, 64), data)
}

func TestPage_InsertFillsLowestSlot(t *testing.T) {
	d := testDesc()
	p, err := NewEmptyPage(record.PageID{TableID: 1}, d, 64)
	require.NoError(t, err)

	for i := range 5 {
		tup := row(d, int32(i), "x")
		require.NoError(t, p.InsertTuple(tup))
		require.Equal(t, i, tup.RID.Slot)
	}
	require.Equal(t, 0, p.NumEmptySlots())
	require.ErrorIs(t, p.InsertTuple(row(d, 9, "full")), ErrPageFull)

	victim, err := p.TupleAt(2)
	require.NoError(t, err)
	require.NoError(t, p.DeleteTuple(victim))
	require.Nil(t, victim.RID)
	require.False(t, p.IsSlotUsed(2))

	again := row(d, 42, "back")
	require.NoError(t, p.InsertTuple(again))
	require.Equal(t, 2, again.RID.Slot)
}

func TestPage_EncodeDecode(t *testing.T) {
	d := testDesc()
	pid := record.PageID{TableID: 3, PageNo: 4}
	p, err := NewEmptyPage(pid, d, 64)
	require.NoError(t, err)

	require.NoError(t, p.InsertTuple(row(d, 1, "aaaa")))
	require.NoError(t, p.InsertTuple(row(d, 2, "bbbb")))
	require.NoError(t, p.InsertTuple(row(d, 3, "cccc")))
	mid, err := p.TupleAt(1)
	require.NoError(t, err)
	require.NoError(t, p.DeleteTuple(mid))

	data, err := p.Encode()
	require.NoError(t, err)
	require.Len(t, data, 64)
	require.Equal(t, byte(0b101), data[0])

	// freed slot bytes are zero
	require.Equal(t, make([]byte, 12), data[1+12:1+24])

	got, err := DecodePage(pid, d, 64, data)
	require.NoError(t, err)
	tuples := got.Tuples()
	require.Len(t, tuples, 2)
	require.Equal(t, "(1, aaaa)", tuples[0].String())
	require.Equal(t, "(3, cccc)", tuples[1].String())
	require.Equal(t, record.RecordID{PageID: pid, Slot: 2}, *tuples[1].RID)
}

func TestDecodePage_IgnoresPaddingBits(t *testing.T) {
	d := testDesc()
	data := make([]byte, 64)
	data[0] = 0xFF // only 5 slots exist

	p, err := DecodePage(record.PageID{}, d, 64, data)
	require.NoError(t, err)
	require.Equal(t, 0, p.NumEmptySlots())
	require.Len(t, p.Tuples(), 5)

	out, err := p.Encode()
	require.NoError(t, err)
	require.Equal(t, byte(0x1F), out[0])
}

func TestDecodePage_Errors(t *testing.T) {
	d := testDesc()

	_, err := DecodePage(record.PageID{}, d, 64, make([]byte, 63))
	require.ErrorIs(t, err, dberr.ErrCorruptPage)

	// string length 200 in a string(4) column
	data := make([]byte, 64)
	data[0] = 0x01
	data[1+4] = 200
	_, err = DecodePage(record.PageID{}, d, 64, data)
	require.ErrorIs(t, err, dberr.ErrCorruptPage)
}

func TestPage_DeleteErrors(t *testing.T) {
	d := testDesc()
	pid := record.PageID{TableID: 1}
	p, err := NewEmptyPage(pid, d, 64)
	require.NoError(t, err)

	require.ErrorIs(t, p.DeleteTuple(row(d, 1, "a")), dberr.ErrTupleNotFound)

	ghost := row(d, 1, "a")
	ghost.RID = &record.RecordID{PageID: pid, Slot: 3}
	require.ErrorIs(t, p.DeleteTuple(ghost), dberr.ErrTupleNotFound)

	other := row(d, 1, "a")
	other.RID = &record.RecordID{PageID: record.PageID{TableID: 2}, Slot: 0}
	require.ErrorIs(t, p.DeleteTuple(other), dberr.ErrTupleNotFound)
}

func TestPage_SlotCountsAreConserved(t *testing.T) {
	d := testDesc()
	p, err := NewEmptyPage(record.PageID{}, d, 4096)
	require.NoError(t, err)

	var live []*record.Tuple
	for i := range 100 {
		tup := row(d, int32(i), "z")
		require.NoError(t, p.InsertTuple(tup))
		live = append(live, tup)
	}
	for i := 0; i < len(live); i += 3 {
		require.NoError(t, p.DeleteTuple(live[i]))
	}
	require.Equal(t, p.NumSlots(), len(p.Tuples())+p.NumEmptySlots())
}

func TestPage_SchemaMismatch(t *testing.T) {
	p, err := NewEmptyPage(record.PageID{}, testDesc(), 64)
	require.NoError(t, err)

	other := record.NewTupleDesc(record.IntCol("id"))
	err = p.InsertTuple(record.MustTuple(other, record.NewIntField(1)))
	require.ErrorIs(t, err, dberr.ErrSchemaMismatch)

	_, err = NewEmptyPage(record.PageID{}, record.NewTupleDesc(record.StringCol("big", 100)), 64)
	require.ErrorIs(t, err, dberr.ErrSchemaMismatch)
}

func TestPage_InsertStoresWhatDecodes(t *testing.T) {
	d := testDesc()
	pid := record.PageID{TableID: 3, PageNo: 0}
	p, err := NewEmptyPage(pid, d, 64)
	require.NoError(t, err)

	// built without NewTuple, so the string is longer than the column
	long := &record.Tuple{Desc: d, Fields: []record.Field{record.NewIntField(9), record.StringField{Value: "abcdefgh"}}}
	require.NoError(t, p.InsertTuple(long))
	require.Equal(t, "abcdefgh", long.Fields[1].String(), "caller's tuple untouched")

	cached, err := p.TupleAt(0)
	require.NoError(t, err)
	require.Equal(t, "(9, abcd)", cached.String())

	data, err := p.Encode()
	require.NoError(t, err)
	decoded, err := DecodePage(pid, d, 64, data)
	require.NoError(t, err)
	fresh, err := decoded.TupleAt(0)
	require.NoError(t, err)
	require.True(t, cached.Equal(fresh))

	wrongType := &record.Tuple{Desc: d, Fields: []record.Field{record.NewStringField("x", 4), record.NewStringField("y", 4)}}
	require.ErrorIs(t, p.InsertTuple(wrongType), dberr.ErrSchemaMismatch)
	require.Nil(t, wrongType.RID)
	require.Equal(t, 4, p.NumEmptySlots())
}
