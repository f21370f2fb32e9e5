package xmap

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

var (
	stringerType        = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// enums holds name tables registered with RegisterEnum.
var enums sync.Map // reflect.Type -> *enumTable

type enumTable struct {
	byName map[string]int64 // lower-cased name -> value
}

// Integer is the constraint for enum underlying types.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// RegisterEnum records the members of an enum type so that it can be read
// back from string storage. Member names come from fmt.Sprint, which uses the
// type's String method when it has one.
//
//	type Status int
//	const (Active Status = iota; Closed)
//	func (s Status) String() string { ... }
//
//	xmap.RegisterEnum(Active, Closed)
func RegisterEnum[T Integer](members ...T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	tbl := &enumTable{byName: make(map[string]int64, len(members))}
	for _, m := range members {
		rv := reflect.ValueOf(m)
		var n int64
		if rv.CanInt() {
			n = rv.Int()
		} else {
			n = int64(rv.Uint())
		}
		tbl.byName[strings.ToLower(fmt.Sprint(m))] = n
	}
	enums.Store(t, tbl)
}

// isEnum reports named integer types that carry a textual form: a String or
// MarshalText method, or a RegisterEnum table.
func isEnum(t reflect.Type) bool {
	if t == nil || t.Name() == "" || t.PkgPath() == "" || !isIntegerKind(t.Kind()) {
		return false
	}
	if _, ok := enums.Load(t); ok {
		return true
	}
	return t.Implements(stringerType) || t.Implements(textMarshalerType)
}

// canParseEnum reports whether text can be turned back into a member of t.
func canParseEnum(t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return true
	}
	_, ok := enums.Load(t)
	return ok
}

func enumFromString(s string, t reflect.Type) (reflect.Value, error) {
	s = strings.TrimSpace(s)
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}
	if v, ok := enums.Load(t); ok {
		if n, ok := v.(*enumTable).byName[strings.ToLower(s)]; ok {
			return setInteger(t, n)
		}
	}
	// Numeric text is accepted for every enum.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return setInteger(t, n)
	}
	return reflect.Value{}, fmt.Errorf("%q is not a member of %s", s, t)
}

func enumToString(v reflect.Value) (string, error) {
	if v.Type().Implements(textMarshalerType) {
		b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		return string(b), err
	}
	if v.Type().Implements(stringerType) {
		return v.Interface().(fmt.Stringer).String(), nil
	}
	if v.CanInt() {
		return strconv.FormatInt(v.Int(), 10), nil
	}
	return strconv.FormatUint(v.Uint(), 10), nil
}

// convertEnum reads a storage value into enum type t: numbers set the member
// directly, text is parsed by name.
func convertEnum(src any, t reflect.Type) (reflect.Value, error) {
	switch s := src.(type) {
	case string:
		return enumFromString(s, t)
	case []byte:
		return enumFromString(string(s), t)
	}
	rv := reflect.ValueOf(src)
	if rv.Type() == t {
		return rv, nil
	}
	n, err := toInt64(src)
	if err != nil {
		return reflect.Value{}, err
	}
	return setInteger(t, n)
}

// writeEnum renders enum value v as storage type target (nil keeps the
// underlying integer).
func writeEnum(v reflect.Value, target reflect.Type) (any, error) {
	if target != nil && target.Kind() == reflect.String {
		return enumToString(v)
	}
	var n int64
	if v.CanInt() {
		n = v.Int()
	} else {
		n = int64(v.Uint())
	}
	if target == nil {
		return n, nil
	}
	out, err := convertTo(n, target)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func setInteger(t reflect.Type, n int64) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	switch {
	case v.CanInt():
		if v.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, t)
		}
		v.SetInt(n)
	case v.CanUint():
		if n < 0 || v.OverflowUint(uint64(n)) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, t)
		}
		v.SetUint(uint64(n))
	default:
		return reflect.Value{}, fmt.Errorf("%s is not an integer type", t)
	}
	return v, nil
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}
