package block

import (
	"fmt"
	"time"
)

// Type names a leaf type as it appears on the wire.
type Type string

const (
	TypeInt      Type = "int"
	TypeLargeInt Type = "large_int"
	TypeUnsigned Type = "unsigned"
	TypeString   Type = "string"
	TypeBool     Type = "bool"
	TypeDate     Type = "date"
	TypeNull     Type = "null"
	TypeRecord   Type = "record"
)

// DateLayout is the wire layout of date leaves.
const DateLayout = "2006-01-02"

// Value is a sealed interface over the block leaf types.
// Only Int, LargeInt, Unsigned, String, Bool, Date, Null and Record implement it.
type Value interface {
	blockValue() // Sealed
}

// Int is a plain signed integer leaf.
type Int int64

func (Int) blockValue() {}

// LargeInt is a 64-bit identifier-sized integer leaf. Entity ids are LargeInt.
type LargeInt int64

func (LargeInt) blockValue() {}

// Unsigned is an unsigned integer leaf.
type Unsigned uint64

func (Unsigned) blockValue() {}

// String is a UTF-8 string leaf.
type String string

func (String) blockValue() {}

// Bool is a boolean leaf.
type Bool bool

func (Bool) blockValue() {}

// Date is a calendar date leaf in DateLayout form.
type Date string

func (Date) blockValue() {}

// Null is an explicit empty leaf.
type Null struct{}

func (Null) blockValue() {}

// Record is an ordered list of named fields.
type Record []Field

func (Record) blockValue() {}

// Field is one named value inside a record, or a top-level block.
type Field struct {
	Name  string
	Value Value
}

// NewDate validates s against DateLayout.
func NewDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

// TypeOf returns the wire type of v.
func TypeOf(v Value) (Type, error) {
	switch v.(type) {
	case Int:
		return TypeInt, nil
	case LargeInt:
		return TypeLargeInt, nil
	case Unsigned:
		return TypeUnsigned, nil
	case String:
		return TypeString, nil
	case Bool:
		return TypeBool, nil
	case Date:
		return TypeDate, nil
	case Null:
		return TypeNull, nil
	case Record:
		return TypeRecord, nil
	default:
		return "", fmt.Errorf("unknown block value type: %T", v)
	}
}

// Index returns the position of the first field called name, or -1.
func (r Record) Index(name string) int {
	for i, f := range r {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Lookup returns the value of the first field called name.
func (r Record) Lookup(name string) (Value, bool) {
	i := r.Index(name)
	if i < 0 {
		return nil, false
	}
	return r[i].Value, true
}

// Set replaces the first field called name, or appends it when absent.
// The returned record must be used, as with append.
func (r Record) Set(name string, v Value) Record {
	if i := r.Index(name); i >= 0 {
		r[i].Value = v
		return r
	}
	return append(r, Field{Name: name, Value: v})
}

// Clone returns a deep copy of v. Leaves are immutable, so only records are copied.
func Clone(v Value) Value {
	rec, ok := v.(Record)
	if !ok {
		return v
	}
	if rec == nil {
		return Record(nil)
	}
	out := make(Record, len(rec))
	for i, f := range rec {
		out[i] = Field{Name: f.Name, Value: Clone(f.Value)}
	}
	return out
}

// CloneField returns a deep copy of f.
func CloneField(f Field) Field {
	return Field{Name: f.Name, Value: Clone(f.Value)}
}
