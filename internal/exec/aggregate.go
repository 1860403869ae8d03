package exec

import (
	"fmt"
	"log/slog"

	"github.com/tuannm99/novadb/internal/dberr"
	"github.com/tuannm99/novadb/internal/record"
)

// Aggregate computes one aggregate over its child, optionally grouped by a
// single field. The child is drained on Open and again on every Rewind.
type Aggregate struct {
	child  OpIterator
	aField int
	gField int
	op     AggOp

	agg     *Aggregator
	results OpIterator
	open    bool
}

var _ OpIterator = (*Aggregate)(nil)

// NewAggregate aggregates child field aField with op, grouped by gField or
// NoGrouping. Output columns are the child's group column followed by
// "op(column)".
func NewAggregate(child OpIterator, aField, gField int, op AggOp) (*Aggregate, error) {
	cd := child.Desc()
	if aField < 0 || aField >= cd.NumFields() {
		return nil, fmt.Errorf("exec: aggregate field %d of %s: %w", aField, cd, dberr.ErrSchemaMismatch)
	}
	if gField != NoGrouping && (gField < 0 || gField >= cd.NumFields()) {
		return nil, fmt.Errorf("exec: group field %d of %s: %w", gField, cd, dberr.ErrSchemaMismatch)
	}

	var gbType record.FieldType
	if gField != NoGrouping {
		gbType = cd.Fields[gField]
	}
	agg, err := NewAggregator(gField, gbType, aField, cd.Fields[aField].Type, op)
	if err != nil {
		return nil, err
	}

	a := &Aggregate{child: child, aField: aField, gField: gField, op: op, agg: agg}
	agg.setNames(a.GroupFieldName(), a.AggregateFieldName())
	return a, nil
}

func (a *Aggregate) AggregateField() int { return a.aField }
func (a *Aggregate) GroupField() int     { return a.gField }
func (a *Aggregate) AggregateOp() AggOp  { return a.op }

// GroupFieldName is the child's name for the group column, or "" without
// grouping.
func (a *Aggregate) GroupFieldName() string {
	if a.gField == NoGrouping {
		return ""
	}
	return a.child.Desc().Fields[a.gField].Name
}

// AggregateFieldName is e.g. "sum(price)".
func (a *Aggregate) AggregateFieldName() string {
	return fmt.Sprintf("%s(%s)", a.op, a.child.Desc().Fields[a.aField].Name)
}

func (a *Aggregate) Desc() *record.TupleDesc { return a.agg.Desc() }

func (a *Aggregate) Open() error {
	if err := a.child.Open(); err != nil {
		return err
	}
	if err := a.compute(); err != nil {
		a.child.Close()
		return err
	}
	a.open = true
	return nil
}

// compute drains the child into a fresh accumulator state.
func (a *Aggregate) compute() error {
	a.agg.reset()
	n := 0
	for {
		ok, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}
		if err := a.agg.Merge(t); err != nil {
			return err
		}
		n++
	}
	slog.Debug("exec: aggregate computed", "op", a.op.String(), "input", n, "groups", len(a.agg.order))

	if a.results != nil {
		a.results.Close()
	}
	a.results = a.agg.Iterator()
	return a.results.Open()
}

func (a *Aggregate) HasNext() (bool, error) {
	if !a.open {
		return false, dberr.ErrIteratorNotOpen
	}
	return a.results.HasNext()
}

func (a *Aggregate) Next() (*record.Tuple, error) {
	if !a.open {
		return nil, dberr.ErrIteratorNotOpen
	}
	return a.results.Next()
}

// Rewind rescans the child and recomputes every group.
func (a *Aggregate) Rewind() error {
	if !a.open {
		return dberr.ErrIteratorNotOpen
	}
	if err := a.child.Rewind(); err != nil {
		return err
	}
	return a.compute()
}

func (a *Aggregate) Close() {
	if a.results != nil {
		a.results.Close()
	}
	a.child.Close()
	a.open = false
}
