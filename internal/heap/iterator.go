package heap

import (
	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
	"github.com/tuannm99/novadb/internal/storage"
)

type iterState uint8

const (
	iterClosed iterState = iota
	iterOpen
	iterExhausted
)

func (s iterState) String() string {
	switch s {
	case iterClosed:
		return "closed"
	case iterOpen:
		return "open"
	case iterExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Iterator walks pages 0..NumPages-1 and, within a page, used slots in
// ascending order. At most one page is pinned in the pool at a time; it is
// released when the cursor moves past it or the iterator closes.
//
// The page count is re-read on every page boundary, so tuples appended to
// new pages during a scan are seen.
type Iterator struct {
	file *File
	tx   storage.TxID

	state  iterState
	pageNo int
	pinned storage.Page
	tuples []*record.Tuple
	pos    int
}

var _ storage.DBFileIterator = (*Iterator)(nil)

// NewIterator returns a closed iterator over f on behalf of tx.
func NewIterator(f *File, tx storage.TxID) *Iterator {
	return &Iterator{file: f, tx: tx, pageNo: -1}
}

// Open positions the cursor before the first tuple. Opening an open
// iterator starts it over.
func (it *Iterator) Open() error {
	if err := it.release(); err != nil {
		return err
	}
	it.reset()
	it.state = iterOpen
	return nil
}

func (it *Iterator) HasNext() (bool, error) {
	switch it.state {
	case iterClosed:
		return false, dberr.ErrIteratorNotOpen
	case iterExhausted:
		return false, nil
	}
	return it.advance()
}

// Next returns a copy of the next tuple; its RID names the slot it came from.
func (it *Iterator) Next() (*record.Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberr.ErrNoMoreTuples
	}
	t := it.tuples[it.pos]
	it.pos++

	fields := make([]record.Field, len(t.Fields))
	copy(fields, t.Fields)
	out := &record.Tuple{Desc: t.Desc, Fields: fields}
	if t.RID != nil {
		rid := *t.RID
		out.RID = &rid
	}
	return out, nil
}

// Rewind restarts the scan from page 0 under the same transaction.
func (it *Iterator) Rewind() error {
	if it.state == iterClosed {
		return dberr.ErrIteratorNotOpen
	}
	return it.Open()
}

// Close releases the pinned page. Closing twice is a no-op.
func (it *Iterator) Close() {
	_ = it.release()
	it.reset()
	it.state = iterClosed
}

func (it *Iterator) reset() {
	it.pageNo = -1
	it.tuples = nil
	it.pos = 0
}

// advance moves to the next page holding a live tuple, or marks the iterator
// exhausted when none remain.
func (it *Iterator) advance() (bool, error) {
	for it.pos >= len(it.tuples) {
		if err := it.release(); err != nil {
			return false, err
		}
		n, err := it.file.NumPages()
		if err != nil {
			return false, err
		}
		if it.pageNo+1 >= n {
			it.state = iterExhausted
			return false, nil
		}
		it.pageNo++

		pid := record.PageID{TableID: it.file.ID(), PageNo: it.pageNo}
		pg, err := it.file.pool.GetPage(it.tx, pid, storage.ReadOnly)
		if err != nil {
			return false, err
		}
		hp, err := asHeapPage(pg)
		if err != nil {
			_ = it.file.pool.Unpin(pg, false)
			return false, err
		}
		it.pinned = pg
		it.tuples = hp.Tuples()
		it.pos = 0
	}
	return true, nil
}

func (it *Iterator) release() error {
	if it.pinned == nil {
		return nil
	}
	pg := it.pinned
	it.pinned = nil
	it.tuples = nil
	it.pos = 0
	return it.file.pool.Unpin(pg, false)
}
