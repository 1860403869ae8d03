package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/tuannm99/novadb/internal/alias/bx"
	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
	"github.com/tuannm99/novadb/internal/storage"
)

const (
	DefaultHistogramBins = 100
	DefaultIOCostPerPage = 1000
	DefaultParallelism   = 4
)

// Catalog is the part of the table registry statistics are built from.
type Catalog interface {
	File(tableID uint64) (storage.DBFile, error)
	TableIDs() []uint64
	TableName(tableID uint64) (string, error)
}

type options struct {
	bins        int
	parallelism int
}

type Option func(*options)

// WithHistogramBins sets the requested bucket count of every column histogram.
func WithHistogramBins(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bins = n
		}
	}
}

// WithParallelism bounds how many tables ComputeStatistics scans at once.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{bins: DefaultHistogramBins, parallelism: DefaultParallelism}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// statsGen numbers every TableStats built so their cache keys never collide.
var statsGen atomic.Uint64

// selectivityCache memoizes estimates for all TableStats of the process, so
// a planner asking the same question repeatedly skips the bucket sums. Sets
// are applied asynchronously: a lookup right after a miss may miss again.
var selectivityCache = sync.OnceValues(func() (*ristretto.Cache[string, float64], error) {
	return ristretto.NewCache(&ristretto.Config[string, float64]{
		NumCounters:        1 << 20,
		MaxCost:            1 << 16,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
})

// estimateKey packs (generation, column, op, constant) into an exact key.
func estimateKey(gen uint64, col int, op record.Op, v int64) string {
	var b [24]byte
	bx.LE.PutUint64(b[0:], gen)
	bx.LE.PutUint32(b[8:], uint32(col))
	bx.LE.PutUint32(b[12:], uint32(op))
	bx.LE.PutUint64(b[16:], uint64(v))
	return string(b[:])
}

// TableStats summarizes one table: a histogram per column plus the tuple
// and page counts seen when it was built. It is immutable after
// construction.
type TableStats struct {
	tableID uint64
	gen     uint64
	desc    *record.TupleDesc
	hists   []*IntHistogram

	tuples        int64
	numPages      int
	ioCostPerPage int
}

// NewTableStats scans table tableID twice outside any transaction: once for
// per-column extrema, once to fill the histograms. String columns are
// histogrammed by record.StringOrdinal.
func NewTableStats(ctx context.Context, cat Catalog, tableID uint64, ioCostPerPage int, opts ...Option) (*TableStats, error) {
	o := buildOptions(opts)

	file, err := cat.File(tableID)
	if err != nil {
		return nil, err
	}
	desc := file.Desc()
	numPages, err := file.NumPages()
	if err != nil {
		return nil, fmt.Errorf("optimizer: table %d: %w: %w", tableID, dberr.ErrScanFailed, err)
	}
	slog.Debug("optimizer: building table stats", "table", tableID, "pages", numPages)

	n := desc.NumFields()
	lo := make([]int64, n)
	hi := make([]int64, n)
	var tuples int64
	err = scanTable(ctx, file, func(t *record.Tuple) error {
		for i, f := range t.Fields {
			v, err := fieldValue(f)
			if err != nil {
				return err
			}
			if tuples == 0 || v < lo[i] {
				lo[i] = v
			}
			if tuples == 0 || v > hi[i] {
				hi[i] = v
			}
		}
		tuples++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("optimizer: table %d extrema pass: %w: %w", tableID, dberr.ErrScanFailed, err)
	}

	hists := make([]*IntHistogram, n)
	for i := range hists {
		hists[i] = NewIntHistogram(o.bins, lo[i], hi[i])
	}
	err = scanTable(ctx, file, func(t *record.Tuple) error {
		for i, f := range t.Fields {
			v, err := fieldValue(f)
			if err != nil {
				return err
			}
			if err := hists[i].AddValue(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("optimizer: table %d histogram pass: %w: %w", tableID, dberr.ErrScanFailed, err)
	}

	slog.Debug("optimizer: table stats built", "table", tableID, "tuples", tuples, "pages", numPages)
	return &TableStats{
		tableID:       tableID,
		gen:           statsGen.Add(1),
		desc:          desc,
		hists:         hists,
		tuples:        tuples,
		numPages:      numPages,
		ioCostPerPage: ioCostPerPage,
	}, nil
}

func scanTable(ctx context.Context, file storage.DBFile, fn func(*record.Tuple) error) error {
	it := file.Iterator(storage.NoTx)
	if err := it.Open(); err != nil {
		return err
	}
	defer it.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := it.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		t, err := it.Next()
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
}

func fieldValue(f record.Field) (int64, error) {
	switch v := f.(type) {
	case record.IntField:
		return int64(v.Value), nil
	case record.StringField:
		return record.StringOrdinal(v.Value), nil
	default:
		return 0, fmt.Errorf("optimizer: field %T: %w", f, dberr.ErrSchemaMismatch)
	}
}

func (s *TableStats) TableID() uint64         { return s.tableID }
func (s *TableStats) Desc() *record.TupleDesc { return s.desc }
func (s *TableStats) TotalTuples() int64      { return s.tuples }
func (s *TableStats) NumPages() int           { return s.numPages }

// Histogram returns the histogram of column col, or nil.
func (s *TableStats) Histogram(col int) *IntHistogram {
	if col < 0 || col >= len(s.hists) {
		return nil
	}
	return s.hists[col]
}

// EstimateScanCost is the I/O cost of a full scan: pages at build time
// times the per-page cost.
func (s *TableStats) EstimateScanCost() float64 {
	return float64(s.numPages) * float64(s.ioCostPerPage)
}

// EstimateCardinality is floor(tuples * selectivity).
func (s *TableStats) EstimateCardinality(selectivity float64) int64 {
	return int64(math.Floor(float64(s.tuples) * selectivity))
}

// EstimateSelectivity estimates the fraction of tuples with "col op
// constant". The constant must have the column's type.
func (s *TableStats) EstimateSelectivity(col int, op record.Op, constant record.Field) (float64, error) {
	if col < 0 || col >= len(s.hists) {
		return 0, fmt.Errorf("optimizer: column %d of %s: %w", col, s.desc, dberr.ErrSchemaMismatch)
	}
	if constant == nil || constant.Type() != s.desc.Fields[col].Type {
		return 0, fmt.Errorf("optimizer: constant for column %d must be %s: %w",
			col, s.desc.Fields[col].Type, dberr.ErrSchemaMismatch)
	}
	v, err := fieldValue(constant)
	if err != nil {
		return 0, err
	}

	key := estimateKey(s.gen, col, op, v)
	cache, err := selectivityCache()
	if err == nil {
		if sel, ok := cache.Get(key); ok {
			return sel, nil
		}
	}

	sel := s.hists[col].EstimateSelectivity(op, v)
	if err == nil {
		cache.Set(key, sel, 1)
	}
	return sel, nil
}

// AvgSelectivity is the expected selectivity of "col op c" for a constant c
// drawn from the column itself. Range operators have no better estimate
// than one half.
func (s *TableStats) AvgSelectivity(col int, op record.Op) float64 {
	h := s.Histogram(col)
	if h == nil {
		return 1
	}
	switch op {
	case record.OpEquals:
		return h.AvgSelectivity()
	case record.OpNotEquals:
		return 1 - h.AvgSelectivity()
	default:
		return 0.5
	}
}
