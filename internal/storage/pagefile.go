package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tuannm99/novadb/internal/alias/util"
	"github.com/tuannm99/novadb/internal/dberr"
)

// PageFile is a flat file of fixed-size pages: page i occupies bytes
// [i*pageSize, (i+1)*pageSize). Each call opens the file, so a PageFile holds
// no descriptor between operations.
type PageFile struct {
	path     string
	pageSize int
}

// OpenPageFile resolves path to its canonical absolute form and creates the
// file (and its directory) if missing. Existing content is kept.
func OpenPageFile(path string, pageSize int) (*PageFile, error) {
	if pageSize < MinPageSize {
		return nil, fmt.Errorf("storage: page size %d below minimum %d", pageSize, MinPageSize)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %q: %w: %w", path, dberr.ErrIO, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), FileMode0755); err != nil {
		return nil, fmt.Errorf("storage: mkdir for %q: %w: %w", abs, dberr.ErrIO, err)
	}
	// RDWR | CREATE (no truncate)
	f, err := os.OpenFile(abs, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w: %w", abs, dberr.ErrIO, err)
	}
	util.CloseFileFunc(f)
	return &PageFile{path: abs, pageSize: pageSize}, nil
}

func (pf *PageFile) Path() string  { return pf.path }
func (pf *PageFile) PageSize() int { return pf.pageSize }

// Size is the current file length in bytes.
func (pf *PageFile) Size() (int64, error) {
	info, err := os.Stat(pf.path)
	if err != nil {
		return 0, fmt.Errorf("storage: stat %q: %w: %w", pf.path, dberr.ErrIO, err)
	}
	return info.Size(), nil
}

// NumPages is floor(size / pageSize); a trailing partial page is not counted.
func (pf *PageFile) NumPages() (int, error) {
	size, err := pf.Size()
	if err != nil {
		return 0, err
	}
	return int(size / int64(pf.pageSize)), nil
}

// ReadPage reads exactly one page into dst. Pages at or past the end of the
// file fail with dberr.ErrOutOfRange.
func (pf *PageFile) ReadPage(pageNo int, dst []byte) error {
	if len(dst) != pf.pageSize {
		return fmt.Errorf("storage: dst must be exactly %d bytes", pf.pageSize)
	}
	if pageNo < 0 {
		return fmt.Errorf("storage: page %d: %w", pageNo, dberr.ErrOutOfRange)
	}

	f, err := os.Open(pf.path)
	if err != nil {
		return fmt.Errorf("storage: open %q: %w: %w", pf.path, dberr.ErrIO, err)
	}
	defer util.CloseFileFunc(f)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("storage: stat %q: %w: %w", pf.path, dberr.ErrIO, err)
	}
	off := int64(pageNo) * int64(pf.pageSize)
	if off >= info.Size() {
		return fmt.Errorf("storage: page %d beyond %d bytes: %w", pageNo, info.Size(), dberr.ErrOutOfRange)
	}

	n, err := f.ReadAt(dst, off)
	if err != nil && !(err == io.EOF && n == pf.pageSize) {
		return fmt.Errorf("storage: read page %d (%d/%d bytes): %w: %w", pageNo, n, pf.pageSize, dberr.ErrIO, err)
	}
	return nil
}

// WritePage writes exactly one page at its offset. Writing past the end
// extends the file.
func (pf *PageFile) WritePage(pageNo int, src []byte) error {
	if len(src) != pf.pageSize {
		return fmt.Errorf("storage: src must be exactly %d bytes", pf.pageSize)
	}
	if pageNo < 0 {
		return fmt.Errorf("storage: page %d: %w", pageNo, dberr.ErrOutOfRange)
	}

	f, err := os.OpenFile(pf.path, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return fmt.Errorf("storage: open %q: %w: %w", pf.path, dberr.ErrIO, err)
	}

	n, err := f.WriteAt(src, int64(pageNo)*int64(pf.pageSize))
	if err == nil && n != pf.pageSize {
		err = io.ErrShortWrite
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("storage: write page %d: %w: %w", pageNo, dberr.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storage: close %q: %w: %w", pf.path, dberr.ErrIO, err)
	}
	return nil
}
