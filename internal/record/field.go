package record

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/constraints"

	"github.com/tuannm99/novadb/internal/alias/bx"
	"github.com/tuannm99/novadb/internal/dberr"
)

// Op is a comparison operator used by predicates and selectivity estimation.
type Op int

const (
	OpEquals Op = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterThanOrEq
	OpLessThan
	OpLessThanOrEq
)

var opNames = map[Op]string{
	OpEquals:          "=",
	OpNotEquals:       "<>",
	OpGreaterThan:     ">",
	OpGreaterThanOrEq: ">=",
	OpLessThan:        "<",
	OpLessThanOrEq:    "<=",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// ParseOp accepts the SQL spelling of an operator.
func ParseOp(s string) (Op, error) {
	switch s {
	case "=", "==":
		return OpEquals, nil
	case "<>", "!=":
		return OpNotEquals, nil
	case ">":
		return OpGreaterThan, nil
	case ">=":
		return OpGreaterThanOrEq, nil
	case "<":
		return OpLessThan, nil
	case "<=":
		return OpLessThanOrEq, nil
	}
	return 0, fmt.Errorf("record: unknown operator %q", s)
}

func evalOrdered[T constraints.Ordered](a, b T, op Op) (bool, error) {
	switch op {
	case OpEquals:
		return a == b, nil
	case OpNotEquals:
		return a != b, nil
	case OpGreaterThan:
		return a > b, nil
	case OpGreaterThanOrEq:
		return a >= b, nil
	case OpLessThan:
		return a < b, nil
	case OpLessThanOrEq:
		return a <= b, nil
	}
	return false, fmt.Errorf("record: unsupported operator %v", op)
}

// Field is a single typed value of a tuple: IntField or StringField.
type Field interface {
	Type() Type
	// Compare evaluates "f op other". Comparing different variants fails
	// with dberr.ErrSchemaMismatch.
	Compare(op Op, other Field) (bool, error)
	String() string
	encode(ft FieldType, dst []byte)
}

type IntField struct {
	Value int32
}

func NewIntField(v int32) IntField { return IntField{Value: v} }

func (f IntField) Type() Type { return IntType }

func (f IntField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(IntField)
	if !ok {
		return false, fmt.Errorf("compare int with %s: %w", other.Type(), dberr.ErrSchemaMismatch)
	}
	return evalOrdered(f.Value, o.Value, op)
}

func (f IntField) String() string { return strconv.FormatInt(int64(f.Value), 10) }

func (f IntField) encode(_ FieldType, dst []byte) {
	bx.PutI32(dst, f.Value)
}

// StringField is a fixed-length string. Values longer than the declared
// length are truncated when the field is built.
type StringField struct {
	Value string
}

// NewStringField truncates s to n bytes.
func NewStringField(s string, n int) StringField {
	if n > 0 && len(s) > n {
		s = s[:n]
	}
	return StringField{Value: s}
}

func (f StringField) Type() Type { return StringType }

func (f StringField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(StringField)
	if !ok {
		return false, fmt.Errorf("compare string with %s: %w", other.Type(), dberr.ErrSchemaMismatch)
	}
	return evalOrdered(f.Value, o.Value, op)
}

func (f StringField) String() string { return f.Value }

// encode writes the u32 length followed by the bytes, zero-padded to ft.Len.
func (f StringField) encode(ft FieldType, dst []byte) {
	v := f.Value
	if len(v) > ft.Len {
		v = v[:ft.Len]
	}
	bx.PutU32(dst, uint32(len(v)))
	body := dst[4 : 4+ft.Len]
	n := copy(body, v)
	clear(body[n:])
}

// StringOrdinal maps a string to an integer that preserves lexicographic
// order on its first four bytes. Statistics use it to histogram string
// columns with the integer machinery.
func StringOrdinal(s string) int64 {
	var b [4]byte
	copy(b[:], s)
	return int64(bx.U32BE(b[:]))
}

// FieldsEqual reports whether two fields hold the same variant and value.
func FieldsEqual(a, b Field) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() {
		return false
	}
	eq, err := a.Compare(OpEquals, b)
	return err == nil && eq
}
