package xmap

import (
	"fmt"
	"iter"
	"reflect"
	"time"
)

// Kind tags the content of a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindTime
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	}
	return "other"
}

// Value is one column of a Record. The zero Value is Absent: the column was
// NULL.
type Value struct {
	kind Kind
	v    any
}

// Absent is the Value of a NULL column.
var Absent = Value{}

// ValueOf wraps a driver value. nil becomes Absent.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Absent
	case bool:
		return Value{KindBool, x}
	case int64:
		return Value{KindInt, x}
	case int:
		return Value{KindInt, int64(x)}
	case int32:
		return Value{KindInt, int64(x)}
	case int16:
		return Value{KindInt, int64(x)}
	case int8:
		return Value{KindInt, int64(x)}
	case uint64:
		return Value{KindUint, x}
	case uint32:
		return Value{KindUint, uint64(x)}
	case uint16:
		return Value{KindUint, uint64(x)}
	case uint8:
		return Value{KindUint, uint64(x)}
	case uint:
		return Value{KindUint, uint64(x)}
	case float64:
		return Value{KindFloat, x}
	case float32:
		return Value{KindFloat, float64(x)}
	case string:
		return Value{KindString, x}
	case []byte:
		return Value{KindBytes, append([]byte(nil), x...)}
	case time.Time:
		return Value{KindTime, x}
	}
	return Value{KindOther, v}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }
func (v Value) Interface() any { return v.v }

func (v Value) Bool() bool {
	b, _ := v.v.(bool)
	return b
}

func (v Value) Int() int64 {
	n, _ := v.v.(int64)
	return n
}

func (v Value) Uint() uint64 {
	n, _ := v.v.(uint64)
	return n
}

func (v Value) Float() float64 {
	f, _ := v.v.(float64)
	return f
}

func (v Value) Bytes() []byte {
	b, _ := v.v.([]byte)
	return b
}

func (v Value) Time() time.Time {
	t, _ := v.v.(time.Time)
	return t
}

// String returns string content as is and formats every other kind.
func (v Value) String() string {
	switch v.kind {
	case KindAbsent:
		return "<absent>"
	case KindString:
		return v.v.(string)
	case KindBytes:
		return string(v.v.([]byte))
	}
	return fmt.Sprint(v.v)
}

// As converts the value to T with the engine's default conversions. Absent
// yields the zero T.
func As[T any](v Value) (T, error) {
	var out T
	if v.IsAbsent() {
		return out, nil
	}
	rv, err := convertTo(v.v, reflect.TypeFor[T]())
	if err != nil {
		return out, &ConversionError{Value: v.v, Err: err}
	}
	return rv.Interface().(T), nil
}

// Record is the dynamic row target: column names in reader order and their
// values. Names are kept as reported; Get matches them case-insensitively.
type Record struct {
	names  []string
	values []Value
	index  map[string]int // normalized name -> first position
}

var recordType = reflect.TypeOf(Record{})

// NewRecord returns an empty record with room for n columns.
func NewRecord(n int) *Record {
	return &Record{
		names:  make([]string, 0, n),
		values: make([]Value, 0, n),
		index:  make(map[string]int, n),
	}
}

// Len returns the number of columns.
func (r *Record) Len() int { return len(r.names) }

// Name returns the i-th column name.
func (r *Record) Name(i int) string { return r.names[i] }

// At returns the i-th value.
func (r *Record) At(i int) Value { return r.values[i] }

// Names returns a copy of the column names.
func (r *Record) Names() []string { return append([]string(nil), r.names...) }

// Get returns the value of the first column called name.
func (r *Record) Get(name string) (Value, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	if i, ok := r.index[normalizeColumn(name)]; ok {
		return r.values[i], true
	}
	return Absent, false
}

// Set replaces the value of column name, or appends the column.
func (r *Record) Set(name string, v any) {
	for i, n := range r.names {
		if n == name {
			r.values[i] = ValueOf(v)
			return
		}
	}
	r.add(name, ValueOf(v))
}

func (r *Record) add(name string, v Value) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	key := normalizeColumn(name)
	if _, ok := r.index[key]; !ok {
		r.index[key] = len(r.names)
	}
	r.names = append(r.names, name)
	r.values = append(r.values, v)
}

// All iterates columns in reader order.
func (r *Record) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for i, n := range r.names {
			if !yield(n, r.values[i]) {
				return
			}
		}
	}
}

// Map returns the record as a map; Absent columns map to nil. Later
// duplicates of a name overwrite earlier ones.
func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.names))
	for i, n := range r.names {
		m[n] = r.values[i].v
	}
	return m
}
