package heap

import (
	"errors"
	"fmt"

	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
	"github.com/tuannm99/novadb/internal/storage"
)

// ErrPageFull is returned by Page.InsertTuple when every slot is occupied.
// File.InsertTuple treats it as "try the next page", never as a failure.
var ErrPageFull = errors.New("heap: page has no empty slot")

// +------------------------------+ 0
// | header bitmap                |  ceil(numSlots/8) bytes, bit i (LSB first) => slot i used
// +------------------------------+
// | slot 0 | slot 1 | ... | n-1  |  numSlots * tupleSize bytes
// +------------------------------+
// | zero padding                 |
// +------------------------------+ pageSize
//
// numSlots = floor(pageSize*8 / (tupleSize*8 + 1)): every slot costs its
// bytes plus one header bit.
type Page struct {
	pid      record.PageID
	desc     *record.TupleDesc
	pageSize int
	numSlots int

	header []byte
	tuples []*record.Tuple

	dirty   bool
	dirtier storage.TxID
}

var _ storage.Page = (*Page)(nil)

// NumSlots is how many tuples of desc fit on a page of pageSize bytes.
func NumSlots(desc *record.TupleDesc, pageSize int) int {
	return (pageSize * 8) / (desc.Size()*8 + 1)
}

func headerSize(numSlots int) int {
	return (numSlots + 7) / 8
}

// NewEmptyPage returns a page with every slot free.
func NewEmptyPage(pid record.PageID, desc *record.TupleDesc, pageSize int) (*Page, error) {
	n := NumSlots(desc, pageSize)
	if n <= 0 {
		return nil, fmt.Errorf("heap: %d-byte tuple does not fit a %d-byte page: %w",
			desc.Size(), pageSize, dberr.ErrSchemaMismatch)
	}
	return &Page{
		pid:      pid,
		desc:     desc,
		pageSize: pageSize,
		numSlots: n,
		header:   make([]byte, headerSize(n)),
		tuples:   make([]*record.Tuple, n),
	}, nil
}

// DecodePage parses a page image. Slots whose header bit is clear are
// ignored; padding bits past numSlots are dropped.
func DecodePage(pid record.PageID, desc *record.TupleDesc, pageSize int, data []byte) (*Page, error) {
	if len(data) != pageSize {
		return nil, fmt.Errorf("heap: page %s is %d bytes, want %d: %w", pid, len(data), pageSize, dberr.ErrCorruptPage)
	}
	p, err := NewEmptyPage(pid, desc, pageSize)
	if err != nil {
		return nil, err
	}
	copy(p.header, data[:len(p.header)])
	p.clearPadding()

	tsize := desc.Size()
	body := data[len(p.header):]
	for i := 0; i < p.numSlots; i++ {
		if !p.IsSlotUsed(i) {
			continue
		}
		t, err := desc.Decode(body[i*tsize : (i+1)*tsize])
		if err != nil {
			return nil, fmt.Errorf("heap: page %s slot %d: %w", pid, i, err)
		}
		t.RID = &record.RecordID{PageID: pid, Slot: i}
		p.tuples[i] = t
	}
	return p, nil
}

// Encode produces the on-disk image; free slots and padding are zero.
func (p *Page) Encode() ([]byte, error) {
	buf := make([]byte, p.pageSize)
	copy(buf, p.header)

	tsize := p.desc.Size()
	body := buf[len(p.header):]
	for i, t := range p.tuples {
		if t == nil || !p.IsSlotUsed(i) {
			continue
		}
		if err := p.desc.Encode(t, body[i*tsize:(i+1)*tsize]); err != nil {
			return nil, fmt.Errorf("heap: encode page %s slot %d: %w", p.pid, i, err)
		}
	}
	return buf, nil
}

func (p *Page) ID() record.PageID       { return p.pid }
func (p *Page) Desc() *record.TupleDesc { return p.desc }
func (p *Page) NumSlots() int           { return p.numSlots }

func (p *Page) Dirtier() (storage.TxID, bool) { return p.dirtier, p.dirty }

func (p *Page) MarkDirty(dirty bool, tx storage.TxID) {
	p.dirty = dirty
	if dirty {
		p.dirtier = tx
	} else {
		p.dirtier = storage.NoTx
	}
}

func (p *Page) IsSlotUsed(i int) bool {
	if i < 0 || i >= p.numSlots {
		return false
	}
	return p.header[i/8]&(1<<(uint(i)%8)) != 0
}

func (p *Page) setSlotUsed(i int, used bool) {
	if i < 0 || i >= p.numSlots {
		return
	}
	if used {
		p.header[i/8] |= 1 << (uint(i) % 8)
	} else {
		p.header[i/8] &^= 1 << (uint(i) % 8)
	}
}

func (p *Page) clearPadding() {
	for i := p.numSlots; i < len(p.header)*8; i++ {
		p.header[i/8] &^= 1 << (uint(i) % 8)
	}
}

func countZeroBits(b byte) int {
	n := 0
	for i := 0; i < 8; i++ {
		if (b>>i)&1 == 0 {
			n++
		}
	}
	return n
}

// NumEmptySlots counts clear header bits, excluding the padding bits of the
// last header byte (always zero).
func (p *Page) NumEmptySlots() int {
	zeros := 0
	for _, b := range p.header {
		zeros += countZeroBits(b)
	}
	return zeros - (len(p.header)*8 - p.numSlots)
}

// InsertTuple stores t in the lowest free slot and sets t.RID.
func (p *Page) InsertTuple(t *record.Tuple) error {
	if !p.desc.Equals(t.Desc) {
		return fmt.Errorf("heap: insert %s into page of %s: %w", t.Desc, p.desc, dberr.ErrSchemaMismatch)
	}
	for i := 0; i < p.numSlots; i++ {
		if p.IsSlotUsed(i) {
			continue
		}
		// stored as it will decode: strings cut to the column length
		stored, err := record.NewTuple(p.desc, t.Fields...)
		if err != nil {
			return fmt.Errorf("heap: insert into page %s: %w", p.pid, err)
		}
		stored.RID = &record.RecordID{PageID: p.pid, Slot: i}
		p.tuples[i] = stored
		p.setSlotUsed(i, true)
		t.RID = &record.RecordID{PageID: p.pid, Slot: i}
		return nil
	}
	return ErrPageFull
}

// DeleteTuple frees the slot named by t.RID and clears t.RID.
func (p *Page) DeleteTuple(t *record.Tuple) error {
	if t.RID == nil || t.RID.PageID != p.pid {
		return fmt.Errorf("heap: tuple %v is not on page %s: %w", t.RID, p.pid, dberr.ErrTupleNotFound)
	}
	slot := t.RID.Slot
	if !p.IsSlotUsed(slot) {
		return fmt.Errorf("heap: slot %d of page %s is empty: %w", slot, p.pid, dberr.ErrTupleNotFound)
	}
	p.setSlotUsed(slot, false)
	p.tuples[slot] = nil
	t.RID = nil
	return nil
}

// TupleAt returns the tuple stored in slot i.
func (p *Page) TupleAt(i int) (*record.Tuple, error) {
	if !p.IsSlotUsed(i) {
		return nil, fmt.Errorf("heap: slot %d of page %s: %w", i, p.pid, dberr.ErrTupleNotFound)
	}
	return p.tuples[i], nil
}

// Tuples returns the live tuples in ascending slot order.
func (p *Page) Tuples() []*record.Tuple {
	out := make([]*record.Tuple, 0, p.numSlots-p.NumEmptySlots())
	for i, t := range p.tuples {
		if t != nil && p.IsSlotUsed(i) {
			out = append(out, t)
		}
	}
	return out
}
