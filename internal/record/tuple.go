package record

import (
	"fmt"
	"strings"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/tuannm99/novadb/internal/alias/bx"
	"github.com/tuannm99/novadb/internal/dberr"
)

// Tuple is a fixed-length row conforming to Desc. RID is set once the tuple
// is stored in (or read from) a heap file.
type Tuple struct {
	Desc   *TupleDesc
	Fields []Field
	RID    *RecordID
}

// NewTuple checks fields against desc and normalizes string lengths.
func NewTuple(desc *TupleDesc, fields ...Field) (*Tuple, error) {
	if len(fields) != desc.NumFields() {
		return nil, fmt.Errorf("tuple has %d fields, schema %s has %d: %w",
			len(fields), desc, desc.NumFields(), dberr.ErrSchemaMismatch)
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		ft := desc.Fields[i]
		if f == nil || f.Type() != ft.Type {
			return nil, fmt.Errorf("field %d is not %s: %w", i, ft.Type, dberr.ErrSchemaMismatch)
		}
		if sf, ok := f.(StringField); ok {
			f = NewStringField(sf.Value, ft.Len)
		}
		out[i] = f
	}
	return &Tuple{Desc: desc, Fields: out}, nil
}

// MustTuple is NewTuple for literals in tests and tools; it panics on a
// schema mismatch.
func MustTuple(desc *TupleDesc, fields ...Field) *Tuple {
	t, err := NewTuple(desc, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Equal compares field values only; descriptor names and record ids are ignored.
func (t *Tuple) Equal(o *Tuple) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.Fields) != len(o.Fields) {
		return false
	}
	for i := range t.Fields {
		if !FieldsEqual(t.Fields[i], o.Fields[i]) {
			return false
		}
	}
	return true
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

type hashEntry struct {
	Kind Type
	Int  int32
	Str  string
}

// Hash is a structural digest of the field values, usable as a map key for
// multiset comparisons.
func (t *Tuple) Hash() uint64 {
	entries := make([]hashEntry, len(t.Fields))
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			entries[i] = hashEntry{Kind: IntType, Int: v.Value}
		case StringField:
			entries[i] = hashEntry{Kind: StringType, Str: v.Value}
		}
	}
	h, err := hashstructure.Hash(entries, hashstructure.FormatV2, nil)
	if err != nil {
		// only plain structs of ints and strings are hashed
		panic(err)
	}
	return h
}

// Encode writes t into dst, which must be exactly d.Size() bytes.
func (d *TupleDesc) Encode(t *Tuple, dst []byte) error {
	if len(dst) != d.Size() {
		return fmt.Errorf("encode into %d bytes, want %d: %w", len(dst), d.Size(), dberr.ErrSchemaMismatch)
	}
	if len(t.Fields) != len(d.Fields) {
		return fmt.Errorf("encode %d fields with schema %s: %w", len(t.Fields), d, dberr.ErrSchemaMismatch)
	}
	off := 0
	for i, ft := range d.Fields {
		f := t.Fields[i]
		if f == nil || f.Type() != ft.Type {
			return fmt.Errorf("encode field %d: %w", i, dberr.ErrSchemaMismatch)
		}
		f.encode(ft, dst[off:off+ft.Size()])
		off += ft.Size()
	}
	return nil
}

// Decode parses one slot image. Bytes that cannot belong to a tuple of this
// schema yield dberr.ErrCorruptPage.
func (d *TupleDesc) Decode(src []byte) (*Tuple, error) {
	if len(src) != d.Size() {
		return nil, fmt.Errorf("decode %d bytes, want %d: %w", len(src), d.Size(), dberr.ErrCorruptPage)
	}
	fields := make([]Field, len(d.Fields))
	off := 0
	for i, ft := range d.Fields {
		switch ft.Type {
		case IntType:
			fields[i] = IntField{Value: bx.I32At(src, off)}
		case StringType:
			n := int(bx.U32At(src, off))
			if n > ft.Len {
				return nil, fmt.Errorf("field %d length %d exceeds %d: %w", i, n, ft.Len, dberr.ErrCorruptPage)
			}
			fields[i] = StringField{Value: string(src[off+4 : off+4+n])}
		default:
			return nil, fmt.Errorf("field %d has type %d: %w", i, ft.Type, dberr.ErrCorruptPage)
		}
		off += ft.Size()
	}
	return &Tuple{Desc: d, Fields: fields}, nil
}
