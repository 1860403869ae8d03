package exec

import (
	"fmt"
	"strings"

	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
)

// NoGrouping as a group field index aggregates the whole input into one row.
const NoGrouping = -1

type AggOp uint8

const (
	AggMin AggOp = iota
	AggMax
	AggSum
	AggAvg
	AggCount
)

var aggOpNames = map[AggOp]string{
	AggMin:   "min",
	AggMax:   "max",
	AggSum:   "sum",
	AggAvg:   "avg",
	AggCount: "count",
}

func (o AggOp) String() string {
	if s, ok := aggOpNames[o]; ok {
		return s
	}
	return fmt.Sprintf("AggOp(%d)", uint8(o))
}

func ParseAggOp(s string) (AggOp, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for op, name := range aggOpNames {
		if name == want {
			return op, nil
		}
	}
	return 0, fmt.Errorf("exec: aggregate %q: %w", s, dberr.ErrUnsupportedAggregate)
}

type keyKind uint8

const (
	keyNone keyKind = iota
	keyInt
	keyString
)

// groupKey is the grouping value itself, so an int 1 and a string "1"
// never share a group.
type groupKey struct {
	kind keyKind
	i    int32
	s    string
}

type accum struct {
	val   int64
	count int64
}

// Aggregator folds tuples into one accumulator per group. Group rows come
// out in first-seen order.
type Aggregator struct {
	gbField int
	gbType  record.FieldType
	aField  int
	op      AggOp

	groups map[groupKey]*accum
	order  []groupKey
	values map[groupKey]record.Field

	desc *record.TupleDesc
}

// NewAggregator builds an aggregator over aggregate field aField of type
// aType, grouped by field gbField of type gbType unless gbField is
// NoGrouping. String aggregate fields only support AggCount.
func NewAggregator(gbField int, gbType record.FieldType, aField int, aType record.Type, op AggOp) (*Aggregator, error) {
	if _, ok := aggOpNames[op]; !ok {
		return nil, fmt.Errorf("exec: %s: %w", op, dberr.ErrUnsupportedAggregate)
	}
	if aType == record.StringType && op != AggCount {
		return nil, fmt.Errorf("exec: %s over a string field: %w", op, dberr.ErrUnsupportedAggregate)
	}
	if aField < 0 || (gbField != NoGrouping && gbField < 0) {
		return nil, fmt.Errorf("exec: field index out of range: %w", dberr.ErrSchemaMismatch)
	}

	a := &Aggregator{
		gbField: gbField,
		gbType:  gbType,
		aField:  aField,
		op:      op,
	}
	a.setNames("group_val", "agg_val")
	a.reset()
	return a, nil
}

func (a *Aggregator) setNames(group, agg string) {
	aggCol := record.IntCol(agg)
	if a.gbField == NoGrouping {
		a.desc = record.NewTupleDesc(aggCol)
		return
	}
	gcol := a.gbType
	gcol.Name = group
	a.desc = record.NewTupleDesc(gcol, aggCol)
}

func (a *Aggregator) reset() {
	a.groups = make(map[groupKey]*accum)
	a.order = nil
	a.values = make(map[groupKey]record.Field)
}

// Desc is (agg_val int) without grouping, (group_val, agg_val int) with it.
func (a *Aggregator) Desc() *record.TupleDesc { return a.desc }

// Merge folds t into the accumulator of its group.
func (a *Aggregator) Merge(t *record.Tuple) error {
	if a.aField >= len(t.Fields) || a.gbField >= len(t.Fields) {
		return fmt.Errorf("exec: merge %d-field tuple: %w", len(t.Fields), dberr.ErrSchemaMismatch)
	}

	key := groupKey{kind: keyNone}
	if a.gbField != NoGrouping {
		switch f := t.Fields[a.gbField].(type) {
		case record.IntField:
			key = groupKey{kind: keyInt, i: f.Value}
		case record.StringField:
			key = groupKey{kind: keyString, s: f.Value}
		default:
			return fmt.Errorf("exec: group field %d is %T: %w", a.gbField, f, dberr.ErrSchemaMismatch)
		}
		if t.Fields[a.gbField].Type() != a.gbType.Type {
			return fmt.Errorf("exec: group field %d is %s, want %s: %w",
				a.gbField, t.Fields[a.gbField].Type(), a.gbType.Type, dberr.ErrSchemaMismatch)
		}
	}

	var v int64
	if a.op != AggCount {
		f, ok := t.Fields[a.aField].(record.IntField)
		if !ok {
			return fmt.Errorf("exec: %s of non-int field %d: %w", a.op, a.aField, dberr.ErrUnsupportedAggregate)
		}
		v = int64(f.Value)
	}

	acc, ok := a.groups[key]
	if !ok {
		acc = &accum{val: v}
		a.groups[key] = acc
		a.order = append(a.order, key)
		if key.kind != keyNone {
			a.values[key] = t.Fields[a.gbField]
		}
		acc.count = 1
		if a.op == AggCount {
			acc.val = 1
		}
		return nil
	}

	acc.count++
	switch a.op {
	case AggMin:
		acc.val = min(acc.val, v)
	case AggMax:
		acc.val = max(acc.val, v)
	case AggSum, AggAvg:
		acc.val += v
	case AggCount:
		acc.val++
	}
	return nil
}

func (a *Aggregator) result(acc *accum) int32 {
	if a.op == AggAvg {
		// Go integer division truncates toward zero
		return int32(acc.val / acc.count)
	}
	return int32(acc.val)
}

// Iterator returns the current per-group results. Later merges are not
// reflected in an iterator already returned.
func (a *Aggregator) Iterator() OpIterator {
	out := make([]*record.Tuple, 0, len(a.order))
	for _, key := range a.order {
		agg := record.NewIntField(a.result(a.groups[key]))
		fields := []record.Field{agg}
		if key.kind != keyNone {
			fields = []record.Field{a.values[key], agg}
		}
		out = append(out, &record.Tuple{Desc: a.desc, Fields: fields})
	}
	return NewTupleIterator(a.desc, out)
}
