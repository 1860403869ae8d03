// Package dberr holds the error kinds surfaced by the storage, execution and
// statistics layers. Callers match them with errors.Is; intermediate layers
// only add context around them with %w.
package dberr

import "errors"

// I/O and corruption.
var (
	ErrIO          = errors.New("novadb: I/O error")
	ErrCorruptPage = errors.New("novadb: corrupt page")
)

// Logical misuse.
var (
	ErrIteratorNotOpen      = errors.New("novadb: iterator not open")
	ErrNoMoreTuples         = errors.New("novadb: no more tuples")
	ErrSchemaMismatch       = errors.New("novadb: schema mismatch")
	ErrUnsupportedAggregate = errors.New("novadb: unsupported aggregate")
)

// Concurrency and resources.
var (
	ErrAborted        = errors.New("novadb: transaction aborted")
	ErrBufferPoolFull = errors.New("novadb: buffer pool is full (all frames pinned)")
)

// Range.
var (
	ErrOutOfRange    = errors.New("novadb: out of range")
	ErrTupleNotFound = errors.New("novadb: tuple not found")
)

// ErrScanFailed tags failures that happen while statistics scan a table.
var ErrScanFailed = errors.New("novadb: statistics scan failed")
