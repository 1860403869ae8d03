package exec

import (
	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
	"github.com/tuannm99/novadb/internal/storage"
)

// OpIterator is the pull interface shared by every operator. Next after the
// last tuple fails with dberr.ErrNoMoreTuples; any call but Open and Close on
// a closed operator fails with dberr.ErrIteratorNotOpen.
type OpIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*record.Tuple, error)
	Rewind() error
	Close()
	Desc() *record.TupleDesc
}

// TupleIterator replays a fixed slice of tuples.
type TupleIterator struct {
	desc   *record.TupleDesc
	tuples []*record.Tuple
	pos    int
	open   bool
}

var _ OpIterator = (*TupleIterator)(nil)

func NewTupleIterator(desc *record.TupleDesc, tuples []*record.Tuple) *TupleIterator {
	return &TupleIterator{desc: desc, tuples: tuples}
}

func (it *TupleIterator) Open() error {
	it.open = true
	it.pos = 0
	return nil
}

func (it *TupleIterator) HasNext() (bool, error) {
	if !it.open {
		return false, dberr.ErrIteratorNotOpen
	}
	return it.pos < len(it.tuples), nil
}

func (it *TupleIterator) Next() (*record.Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberr.ErrNoMoreTuples
	}
	t := it.tuples[it.pos]
	it.pos++
	return t, nil
}

func (it *TupleIterator) Rewind() error {
	if !it.open {
		return dberr.ErrIteratorNotOpen
	}
	it.pos = 0
	return nil
}

func (it *TupleIterator) Close()                  { it.open = false }
func (it *TupleIterator) Desc() *record.TupleDesc { return it.desc }

// SeqScan exposes a file's scan cursor as an operator.
type SeqScan struct {
	storage.DBFileIterator
	desc *record.TupleDesc
}

var _ OpIterator = (*SeqScan)(nil)

// NewSeqScan scans every live tuple of file on behalf of tx.
func NewSeqScan(file storage.DBFile, tx storage.TxID) *SeqScan {
	return &SeqScan{DBFileIterator: file.Iterator(tx), desc: file.Desc()}
}

func (s *SeqScan) Desc() *record.TupleDesc { return s.desc }
