package record

import "fmt"

// PageID addresses one page of a table file: TableID is the file identity,
// PageNo the zero-based page index inside it.
type PageID struct {
	TableID uint64
	PageNo  int
}

func (p PageID) String() string {
	return fmt.Sprintf("%d:%d", p.TableID, p.PageNo)
}

// RecordID (physical row identity inside a heap file):
// PageID: page holding the row
// Slot  : slot index on that page
type RecordID struct {
	PageID PageID
	Slot   int
}

func (r RecordID) String() string {
	return fmt.Sprintf("%s.%d", r.PageID, r.Slot)
}
