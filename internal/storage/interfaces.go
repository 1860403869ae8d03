package storage

import (
	"github.com/google/uuid"

	"github.com/tuannm99/novadb/internal/record"
)

// TxID identifies a transaction to the buffer pool. NoTx is valid for
// read-only work such as statistics scans.
type TxID = uuid.UUID

var NoTx = uuid.Nil

func NewTxID() TxID { return uuid.New() }

// Perm is the access mode requested for a page.
type Perm uint8

const (
	ReadOnly Perm = iota + 1
	ReadWrite
)

func (p Perm) String() string {
	switch p {
	case ReadOnly:
		return "read_only"
	case ReadWrite:
		return "read_write"
	default:
		return "unknown"
	}
}

// Page is a decoded page handle as held by the buffer pool.
type Page interface {
	ID() record.PageID
	// Dirtier returns the transaction that last dirtied the page and whether
	// the page is dirty at all.
	Dirtier() (TxID, bool)
	MarkDirty(dirty bool, tx TxID)
	// Encode returns the exact on-disk image of the page.
	Encode() ([]byte, error)
}

// DBFileIterator is a pull cursor over every live tuple of a DBFile.
type DBFileIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*record.Tuple, error)
	Rewind() error
	Close()
}

// DBFile is a paged table file. NumPages is part of the contract so cost
// estimation works for every file kind.
type DBFile interface {
	ID() uint64
	Desc() *record.TupleDesc
	NumPages() (int, error)

	ReadPage(pid record.PageID) (Page, error)
	WritePage(p Page) error

	InsertTuple(tx TxID, t *record.Tuple) ([]Page, error)
	DeleteTuple(tx TxID, t *record.Tuple) ([]Page, error)

	Iterator(tx TxID) DBFileIterator
}
