package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
	"github.com/tuannm99/novadb/internal/storage"
)

var (
	DefaultCapacity = 128

	ErrPagePinned = errors.New("bufferpool: page is pinned")
)

type Replacer interface {
	RecordAccess(frameID int)
	SetEvictable(frameID int, evictable bool)
	Evict() (frameID int, ok bool)
	Remove(frameID int)
	Size() int
}

// FileSource resolves the table id carried in a PageID to the file that
// owns the page. The catalog satisfies it.
type FileSource interface {
	File(tableID uint64) (storage.DBFile, error)
}

type frame struct {
	pid   record.PageID
	page  storage.Page
	dirty bool
	pin   int32
}

// Pool caches decoded pages of every table in a fixed number of frames and
// evicts unpinned ones with CLOCK. Pages are keyed by PageID, which already
// carries the table id, so one pool serves all files.
type Pool struct {
	files FileSource

	mu        sync.Mutex
	frames    []*frame              // len == capacity, nil == free slot
	pageTable map[record.PageID]int // PageID -> frame index
	aborted   map[storage.TxID]struct{}

	replacementPolicy Replacer
}

func New(files FileSource, capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		files:             files,
		frames:            make([]*frame, capacity),
		pageTable:         make(map[record.PageID]int),
		aborted:           make(map[storage.TxID]struct{}),
		replacementPolicy: newClockAdapter(capacity),
	}
}

func (p *Pool) Capacity() int { return len(p.frames) }

// Resident is the number of occupied frames.
func (p *Pool) Resident() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pageTable)
}

// GetPage returns page pid pinned on behalf of tx. Every successful call
// must be paired with Unpin. perm is not enforced: there is no lock manager.
func (p *Pool) GetPage(tx storage.TxID, pid record.PageID, perm storage.Perm) (storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.aborted[tx]; ok && tx != storage.NoTx {
		return nil, fmt.Errorf("bufferpool: tx %s: %w", tx, dberr.ErrAborted)
	}

	// 1) HIT
	if idx, ok := p.pageTable[pid]; ok {
		f := p.frames[idx]
		if f == nil {
			delete(p.pageTable, pid)
		} else {
			wasZero := f.pin == 0
			f.pin++

			p.replacementPolicy.RecordAccess(idx)
			if wasZero {
				p.replacementPolicy.SetEvictable(idx, false)
			}
			return f.page, nil
		}
	}

	// 2) Free slot
	freeIdx := -1
	for i, f := range p.frames {
		if f == nil {
			freeIdx = i
			break
		}
	}
	if freeIdx != -1 {
		page, err := p.load(pid)
		if err != nil {
			return nil, err
		}
		p.frames[freeIdx] = &frame{pid: pid, page: page, pin: 1}
		p.pageTable[pid] = freeIdx

		p.replacementPolicy.RecordAccess(freeIdx)
		p.replacementPolicy.SetEvictable(freeIdx, false)
		return page, nil
	}

	// 3) Evict
	victimIdx, ok := p.replacementPolicy.Evict()
	if !ok {
		return nil, fmt.Errorf("bufferpool: %d frames pinned: %w", len(p.frames), dberr.ErrBufferPoolFull)
	}
	victim := p.frames[victimIdx]
	if victim == nil || victim.pin != 0 {
		if victim != nil {
			p.replacementPolicy.RecordAccess(victimIdx)
		}
		return nil, fmt.Errorf("bufferpool: frame %d not evictable: %w", victimIdx, dberr.ErrBufferPoolFull)
	}

	if victim.dirty {
		if err := p.write(victim); err != nil {
			p.restoreVictim(victimIdx)
			return nil, err
		}
	}

	page, err := p.load(pid)
	if err != nil {
		p.restoreVictim(victimIdx)
		return nil, err
	}
	slog.Debug("bufferpool: evicted", "victim", victim.pid.String(), "page", pid.String())

	delete(p.pageTable, victim.pid)
	victim.pid = pid
	victim.page = page
	victim.dirty = false
	victim.pin = 1
	p.pageTable[pid] = victimIdx

	p.replacementPolicy.RecordAccess(victimIdx)
	p.replacementPolicy.SetEvictable(victimIdx, false)
	return page, nil
}

// Unpin releases one pin on page. dirty=true marks the frame for write-back;
// dirty=false never clears an earlier mark. Unknown pages are ignored.
func (p *Pool) Unpin(page storage.Page, dirty bool) error {
	if page == nil {
		return nil
	}
	pid := page.ID()

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pid]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if f == nil {
		delete(p.pageTable, pid)
		return nil
	}

	if dirty {
		f.dirty = true
	}
	if f.pin > 0 {
		f.pin--
		if f.pin == 0 {
			p.replacementPolicy.SetEvictable(idx, true)
		}
	}
	return nil
}

// FlushPage writes pid back if it is cached and dirty.
func (p *Pool) FlushPage(pid record.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pid]
	if !ok || p.frames[idx] == nil || !p.frames[idx].dirty {
		return nil
	}
	return p.write(p.frames[idx])
}

func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.frames {
		if f == nil || !f.dirty {
			continue
		}
		if err := p.write(f); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage drops pid from the pool without writing it back.
func (p *Pool) DiscardPage(pid record.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pid]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if f != nil && f.pin != 0 {
		return fmt.Errorf("bufferpool: discard %s: %w", pid, ErrPagePinned)
	}
	p.frames[idx] = nil
	delete(p.pageTable, pid)
	p.replacementPolicy.Remove(idx)
	return nil
}

// AbortTransaction drops the unpinned pages tx dirtied without writing them
// and rejects any further GetPage on behalf of tx.
func (p *Pool) AbortTransaction(tx storage.TxID) {
	if tx == storage.NoTx {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.aborted[tx] = struct{}{}
	dropped := 0
	for i, f := range p.frames {
		if f == nil || f.pin != 0 {
			continue
		}
		if dirtier, dirty := f.page.Dirtier(); !dirty || dirtier != tx {
			continue
		}
		p.frames[i] = nil
		delete(p.pageTable, f.pid)
		p.replacementPolicy.Remove(i)
		dropped++
	}
	slog.Info("bufferpool: transaction aborted", "tx", tx.String(), "dropped", dropped)
}

func (p *Pool) load(pid record.PageID) (storage.Page, error) {
	file, err := p.files.File(pid.TableID)
	if err != nil {
		return nil, err
	}
	return file.ReadPage(pid)
}

func (p *Pool) write(f *frame) error {
	file, err := p.files.File(f.pid.TableID)
	if err != nil {
		return err
	}
	if err := file.WritePage(f.page); err != nil {
		return err
	}
	f.dirty = false
	f.page.MarkDirty(false, storage.NoTx)
	return nil
}

func (p *Pool) restoreVictim(idx int) {
	p.replacementPolicy.RecordAccess(idx)
	p.replacementPolicy.SetEvictable(idx, true)
}
