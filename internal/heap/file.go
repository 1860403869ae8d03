package heap

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
	"github.com/tuannm99/novadb/internal/storage"
)

// BufferPool is what a heap file needs from the page cache: pinned page
// handles, released with Unpin once the caller is done with them.
type BufferPool interface {
	GetPage(tx storage.TxID, pid record.PageID, perm storage.Perm) (storage.Page, error)
	Unpin(page storage.Page, dirty bool) error
}

type options struct {
	pageSize int
}

type Option func(*options)

// WithPageSize overrides storage.DefaultPageSize. All files of one database
// instance must agree on it.
func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

// File is a heap file: an unordered collection of fixed-length tuples stored
// in bitmap pages of a single OS file.
type File struct {
	pf   *storage.PageFile
	id   uint64
	desc *record.TupleDesc
	pool BufferPool

	// serializes the free-slot search and page append of InsertTuple
	mu sync.Mutex
}

var _ storage.DBFile = (*File)(nil)

// NewFile opens (creating if needed) the heap file at path. The table id is
// the xxhash of the canonical absolute path, so it is stable across runs.
func NewFile(path string, desc *record.TupleDesc, pool BufferPool, opts ...Option) (*File, error) {
	o := options{pageSize: storage.DefaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	if desc == nil || desc.NumFields() == 0 {
		return nil, fmt.Errorf("heap: empty schema: %w", dberr.ErrSchemaMismatch)
	}
	if NumSlots(desc, o.pageSize) <= 0 {
		return nil, fmt.Errorf("heap: %d-byte tuple does not fit a %d-byte page: %w",
			desc.Size(), o.pageSize, dberr.ErrSchemaMismatch)
	}

	pf, err := storage.OpenPageFile(path, o.pageSize)
	if err != nil {
		return nil, err
	}
	return &File{
		pf:   pf,
		id:   xxhash.Sum64String(pf.Path()),
		desc: desc,
		pool: pool,
	}, nil
}

func (f *File) ID() uint64              { return f.id }
func (f *File) Desc() *record.TupleDesc { return f.desc }
func (f *File) Path() string            { return f.pf.Path() }
func (f *File) PageSize() int           { return f.pf.PageSize() }

// SizeBytes is the current length of the backing file.
func (f *File) SizeBytes() (int64, error) { return f.pf.Size() }

// NumPages is floor(file size / page size).
func (f *File) NumPages() (int, error) { return f.pf.NumPages() }

// ReadPage reads and decodes page pid straight from disk, bypassing the pool.
func (f *File) ReadPage(pid record.PageID) (storage.Page, error) {
	if pid.TableID != f.id {
		return nil, fmt.Errorf("heap: page %s is not in table %d: %w", pid, f.id, dberr.ErrOutOfRange)
	}
	buf := make([]byte, f.pf.PageSize())
	if err := f.pf.ReadPage(pid.PageNo, buf); err != nil {
		return nil, err
	}
	return DecodePage(pid, f.desc, f.pf.PageSize(), buf)
}

// WritePage writes p at its offset, extending the file when p is past the end.
func (f *File) WritePage(p storage.Page) error {
	pid := p.ID()
	if pid.TableID != f.id {
		return fmt.Errorf("heap: page %s is not in table %d: %w", pid, f.id, dberr.ErrOutOfRange)
	}
	data, err := p.Encode()
	if err != nil {
		return err
	}
	return f.pf.WritePage(pid.PageNo, data)
}

// InsertTuple puts t in the first page with a free slot, appending a new
// page when every existing page is full. The touched page is written through
// and returned.
func (f *File) InsertTuple(tx storage.TxID, t *record.Tuple) ([]storage.Page, error) {
	if !f.desc.Equals(t.Desc) {
		return nil, fmt.Errorf("heap: insert %s into table of %s: %w", t.Desc, f.desc, dberr.ErrSchemaMismatch)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.NumPages()
	if err != nil {
		return nil, err
	}

	for pageNo := 0; pageNo < n; pageNo++ {
		pg, err := f.pool.GetPage(tx, record.PageID{TableID: f.id, PageNo: pageNo}, storage.ReadWrite)
		if err != nil {
			return nil, err
		}
		hp, err := asHeapPage(pg)
		if err != nil {
			_ = f.pool.Unpin(pg, false)
			return nil, err
		}
		if hp.NumEmptySlots() == 0 {
			if err := f.pool.Unpin(pg, false); err != nil {
				return nil, err
			}
			continue
		}

		if err := hp.InsertTuple(t); err != nil {
			_ = f.pool.Unpin(pg, false)
			return nil, err
		}
		slot := t.RID.Slot
		err = f.writeThrough(tx, hp, func() {
			hp.setSlotUsed(slot, false)
			hp.tuples[slot] = nil
			t.RID = nil
		})
		if uerr := f.pool.Unpin(pg, err == nil); err == nil {
			err = uerr
		}
		if err != nil {
			return nil, err
		}
		return []storage.Page{hp}, nil
	}

	// No page had room: the file grows by exactly one page.
	hp, err := NewEmptyPage(record.PageID{TableID: f.id, PageNo: n}, f.desc, f.pf.PageSize())
	if err != nil {
		return nil, err
	}
	if err := hp.InsertTuple(t); err != nil {
		return nil, err
	}
	if err := f.writeThrough(tx, hp, func() { t.RID = nil }); err != nil {
		return nil, err
	}
	slog.Debug("heap: appended page", "table", f.id, "page", n, "slots", hp.NumSlots())
	return []storage.Page{hp}, nil
}

// DeleteTuple frees the slot at t.RID. A missing record id, one from another
// table, or an already empty slot fail with dberr.ErrTupleNotFound.
func (f *File) DeleteTuple(tx storage.TxID, t *record.Tuple) ([]storage.Page, error) {
	if t.RID == nil {
		return nil, fmt.Errorf("heap: tuple %s has no record id: %w", t, dberr.ErrTupleNotFound)
	}
	rid := *t.RID
	if rid.PageID.TableID != f.id {
		return nil, fmt.Errorf("heap: record %s is not in table %d: %w", rid, f.id, dberr.ErrTupleNotFound)
	}
	n, err := f.NumPages()
	if err != nil {
		return nil, err
	}
	if rid.PageID.PageNo < 0 || rid.PageID.PageNo >= n {
		return nil, fmt.Errorf("heap: record %s past %d pages: %w", rid, n, dberr.ErrTupleNotFound)
	}

	pg, err := f.pool.GetPage(tx, rid.PageID, storage.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp, err := asHeapPage(pg)
	if err != nil {
		_ = f.pool.Unpin(pg, false)
		return nil, err
	}

	old, err := hp.TupleAt(rid.Slot)
	if err != nil {
		_ = f.pool.Unpin(pg, false)
		return nil, err
	}
	if err := hp.DeleteTuple(t); err != nil {
		_ = f.pool.Unpin(pg, false)
		return nil, err
	}
	err = f.writeThrough(tx, hp, func() {
		hp.tuples[rid.Slot] = old
		hp.setSlotUsed(rid.Slot, true)
		t.RID = &rid
	})
	if uerr := f.pool.Unpin(pg, err == nil); err == nil {
		err = uerr
	}
	if err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

// writeThrough marks hp dirty and writes it to disk; undo restores the
// in-memory page when the write fails.
func (f *File) writeThrough(tx storage.TxID, hp *Page, undo func()) error {
	wasDirty := hp.dirty
	prev := hp.dirtier
	hp.MarkDirty(true, tx)
	if err := f.WritePage(hp); err != nil {
		undo()
		hp.dirty, hp.dirtier = wasDirty, prev
		return err
	}
	return nil
}

// Iterator returns a closed scan cursor over every live tuple of the file.
func (f *File) Iterator(tx storage.TxID) storage.DBFileIterator {
	return NewIterator(f, tx)
}

func asHeapPage(pg storage.Page) (*Page, error) {
	hp, ok := pg.(*Page)
	if !ok {
		return nil, fmt.Errorf("heap: page %s is a %T: %w", pg.ID(), pg, dberr.ErrCorruptPage)
	}
	return hp, nil
}
