package optimizer

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/constraints"

	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
)

func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

// IntHistogram is a fixed-width histogram over [min, max]. Bucket i counts
// values in [min + i*width, min + (i+1)*width); the last bucket holds max.
// Offsets from min are kept in uint64 so the full int64 range fits.
type IntHistogram struct {
	min, max int64
	// effMax is max rounded up so every bucket has the same width.
	effMax  int64
	width   uint64
	buckets []int64
	total   int64
}

// NewIntHistogram uses min(buckets, max-min+1) buckets so width is at least
// one. A reversed range is swapped.
func NewIntHistogram(buckets int, lo, hi int64) *IntHistogram {
	if lo > hi {
		lo, hi = hi, lo
	}
	// span-1 never overflows; span itself wraps for the full int64 range.
	spanMinus1 := uint64(hi) - uint64(lo)
	n := uint64(max(buckets, 1))
	if spanMinus1 < n-1 {
		n = spanMinus1 + 1
	}
	width := spanMinus1/n + 1
	if width == 0 {
		width = math.MaxUint64
	}

	effMax := hi
	extra := n - 1 - spanMinus1%n
	if hi >= 0 && extra > uint64(math.MaxInt64-hi) {
		effMax = math.MaxInt64
	} else {
		effMax += int64(extra)
	}
	return &IntHistogram{
		min:     lo,
		max:     hi,
		effMax:  effMax,
		width:   width,
		buckets: make([]int64, n),
	}
}

func (h *IntHistogram) Min() int64      { return h.min }
func (h *IntHistogram) Max() int64      { return h.max }
func (h *IntHistogram) Width() uint64   { return h.width }
func (h *IntHistogram) NumBuckets() int { return len(h.buckets) }

// Total is the number of values added.
func (h *IntHistogram) Total() int64 { return h.total }

// Buckets returns a copy of the bucket heights.
func (h *IntHistogram) Buckets() []int64 {
	out := make([]int64, len(h.buckets))
	copy(out, h.buckets)
	return out
}

// AddValue counts v. Values outside [min, effective max] are rejected with
// dberr.ErrOutOfRange and leave the histogram unchanged.
func (h *IntHistogram) AddValue(v int64) error {
	if v < h.min || v > h.effMax {
		return fmt.Errorf("optimizer: value %d outside [%d, %d]: %w", v, h.min, h.effMax, dberr.ErrOutOfRange)
	}
	h.buckets[h.index(v)]++
	h.total++
	return nil
}

func (h *IntHistogram) offset(v int64) uint64 { return uint64(v) - uint64(h.min) }

func (h *IntHistogram) index(v int64) int {
	return int(min(h.offset(v)/h.width, uint64(len(h.buckets)-1)))
}

// countRange is the summed height of buckets [from, to].
func (h *IntHistogram) countRange(from, to int) int64 {
	from = max(from, 0)
	to = min(to, len(h.buckets)-1)
	var sum int64
	for i := from; i <= to; i++ {
		sum += h.buckets[i]
	}
	return sum
}

// fraction is (the first part/width share of bucket i + whole) over the
// total. Counts are added before the single division so the estimate is
// monotone in v.
func (h *IntHistogram) fraction(i int, part uint64, whole int64) float64 {
	partial := float64(h.buckets[i]) * float64(part) / float64(h.width)
	return (partial + float64(whole)) / float64(h.total)
}

// EstimateSelectivity returns the estimated fraction of added values that
// satisfy "value op v", always in [0, 1].
func (h *IntHistogram) EstimateSelectivity(op record.Op, v int64) float64 {
	var sel float64
	switch op {
	case record.OpEquals:
		sel = h.equals(v)
	case record.OpNotEquals:
		sel = 1 - h.equals(v)
	case record.OpGreaterThan:
		sel = h.greater(v, false)
	case record.OpGreaterThanOrEq:
		sel = h.greater(v, true)
	case record.OpLessThan:
		sel = h.less(v, false)
	case record.OpLessThanOrEq:
		sel = h.less(v, true)
	}
	return clamp(sel, 0, 1)
}

func (h *IntHistogram) equals(v int64) float64 {
	if v < h.min || v > h.max || h.total == 0 {
		return 0
	}
	height := h.buckets[h.index(v)]
	return (float64(height) / float64(h.width)) / float64(h.total)
}

func (h *IntHistogram) greater(v int64, inclusive bool) float64 {
	if v <= h.min {
		return 1
	}
	if v > h.max || (!inclusive && v == h.max) {
		return 0
	}
	if h.total == 0 {
		return 0
	}

	i := h.index(v)
	part := h.width - h.offset(v)%h.width - 1
	if inclusive {
		part++
	}
	return h.fraction(i, part, h.countRange(i+1, len(h.buckets)-1))
}

func (h *IntHistogram) less(v int64, inclusive bool) float64 {
	if v >= h.max {
		return 1
	}
	if v < h.min || (!inclusive && v == h.min) {
		return 0
	}
	if h.total == 0 {
		return 0
	}

	i := h.index(v)
	part := h.offset(v) % h.width
	if inclusive {
		part++
	}
	return h.fraction(i, part, h.countRange(0, i-1))
}

// AvgSelectivity is the expected equality selectivity of a constant drawn
// from the data itself: sum over buckets of (h/N) * (h/width)/N.
func (h *IntHistogram) AvgSelectivity() float64 {
	if h.total == 0 {
		return 0
	}
	n := float64(h.total)
	var sum float64
	for _, b := range h.buckets {
		f := float64(b) / n
		sum += f * (float64(b) / float64(h.width)) / n
	}
	return clamp(sum, 0, 1)
}

func (h *IntHistogram) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "min: %d\tmax: %d\twidth: %d\ttotal: %d\n", h.min, h.effMax, h.width, h.total)
	for i, b := range h.buckets {
		if i > 0 {
			sb.WriteByte('\t')
		}
		fmt.Fprintf(&sb, "%d", b)
	}
	return sb.String()
}
