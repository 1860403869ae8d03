package record

import (
	"fmt"
	"strings"
)

type Type uint8

const (
	IntType Type = iota
	StringType
)

// IntSize is the encoded width of an IntType field.
const IntSize = 4

// DefaultStringLen is used for string columns declared without a length.
const DefaultStringLen = 128

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	default:
		return "unknown"
	}
}

// ParseType maps "int" / "string" to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "int", "int32", "integer":
		return IntType, nil
	case "string", "text", "varchar", "char":
		return StringType, nil
	default:
		return 0, fmt.Errorf("record: unknown field type %q", s)
	}
}

// FieldType describes one column. Len is the fixed byte length of a string
// column and is ignored for ints.
type FieldType struct {
	Name string
	Type Type
	Len  int
}

// Size is the encoded width of the column inside a slot.
func (ft FieldType) Size() int {
	if ft.Type == StringType {
		// u32 length prefix + fixed body
		return 4 + ft.Len
	}
	return IntSize
}

func (ft FieldType) sameType(o FieldType) bool {
	if ft.Type != o.Type {
		return false
	}
	return ft.Type != StringType || ft.Len == o.Len
}

func (ft FieldType) String() string {
	typ := ft.Type.String()
	if ft.Type == StringType {
		typ = fmt.Sprintf("string(%d)", ft.Len)
	}
	if ft.Name == "" {
		return typ
	}
	return ft.Name + " " + typ
}

// IntCol and StringCol are shorthands for building descriptors.
func IntCol(name string) FieldType { return FieldType{Name: name, Type: IntType} }

func StringCol(name string, n int) FieldType {
	if n <= 0 {
		n = DefaultStringLen
	}
	return FieldType{Name: name, Type: StringType, Len: n}
}

// TupleDesc is the schema of a row: an ordered list of typed, optionally
// named columns.
type TupleDesc struct {
	Fields []FieldType
}

func NewTupleDesc(fields ...FieldType) *TupleDesc {
	cp := make([]FieldType, len(fields))
	copy(cp, fields)
	return &TupleDesc{Fields: cp}
}

func (d *TupleDesc) NumFields() int { return len(d.Fields) }

// Size is the fixed encoded length of a tuple with this descriptor.
func (d *TupleDesc) Size() int {
	n := 0
	for _, f := range d.Fields {
		n += f.Size()
	}
	return n
}

// Equals reports whether both descriptors have the same type sequence.
// Field names are informational and not compared.
func (d *TupleDesc) Equals(o *TupleDesc) bool {
	if d == nil || o == nil {
		return d == o
	}
	if len(d.Fields) != len(o.Fields) {
		return false
	}
	for i := range d.Fields {
		if !d.Fields[i].sameType(o.Fields[i]) {
			return false
		}
	}
	return true
}

// FieldIndex returns the position of the column called name, or -1.
func (d *TupleDesc) FieldIndex(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Copy returns a deep copy of the descriptor.
func (d *TupleDesc) Copy() *TupleDesc {
	return NewTupleDesc(d.Fields...)
}

// Merge returns a descriptor with d's columns followed by o's.
func (d *TupleDesc) Merge(o *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(d.Fields)+len(o.Fields))
	fields = append(fields, d.Fields...)
	fields = append(fields, o.Fields...)
	return &TupleDesc{Fields: fields}
}

func (d *TupleDesc) String() string {
	parts := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
