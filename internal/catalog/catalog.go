package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/tuannm99/novadb/internal/record"
	"github.com/tuannm99/novadb/internal/storage"
)

var ErrNoSuchTable = errors.New("catalog: no such table")

// TableMeta is a point-in-time description of a registered table.
type TableMeta struct {
	ID        uint64
	Name      string
	PageCount int
	Desc      *record.TupleDesc
}

type table struct {
	name string
	file storage.DBFile
}

// Catalog maps table ids and names to their files. It is safe for
// concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[uint64]*table
	byName map[string]uint64
}

func New() *Catalog {
	return &Catalog{
		byID:   make(map[uint64]*table),
		byName: make(map[string]uint64),
	}
}

// AddTable registers file under name. A table already registered with the
// same name or the same id is replaced.
func (c *Catalog) AddTable(file storage.DBFile, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := file.ID()
	if oldID, ok := c.byName[name]; ok {
		delete(c.byID, oldID)
	}
	if old, ok := c.byID[id]; ok {
		delete(c.byName, old.name)
	}
	c.byID[id] = &table{name: name, file: file}
	c.byName[name] = id
	slog.Debug("catalog: table added", "name", name, "id", id, "schema", file.Desc().String())
}

func (c *Catalog) lookup(id uint64) (*table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("catalog: table %d: %w", id, ErrNoSuchTable)
	}
	return t, nil
}

func (c *Catalog) File(id uint64) (storage.DBFile, error) {
	t, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return t.file, nil
}

func (c *Catalog) Schema(id uint64) (*record.TupleDesc, error) {
	t, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return t.file.Desc(), nil
}

func (c *Catalog) TableName(id uint64) (string, error) {
	t, err := c.lookup(id)
	if err != nil {
		return "", err
	}
	return t.name, nil
}

func (c *Catalog) TableID(name string) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byName[name]
	if !ok {
		return 0, fmt.Errorf("catalog: table %q: %w", name, ErrNoSuchTable)
	}
	return id, nil
}

// TableIDs returns every registered id in ascending order.
func (c *Catalog) TableIDs() []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]uint64, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Describe reports the table's name, schema and current page count.
func (c *Catalog) Describe(id uint64) (TableMeta, error) {
	t, err := c.lookup(id)
	if err != nil {
		return TableMeta{}, err
	}
	n, err := t.file.NumPages()
	if err != nil {
		return TableMeta{}, err
	}
	return TableMeta{ID: id, Name: t.name, PageCount: n, Desc: t.file.Desc()}, nil
}
