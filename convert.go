package xmap

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Strategy is how a value crosses from one type to another.
type Strategy uint8

const (
	StrategyDirect Strategy = iota
	StrategyWideningCast
	StrategyNarrowingCast
	StrategyStringParse
	StrategyStringFormat
	StrategyEnum
	StrategyGUIDToString
	StrategyStringToGUID
	StrategyCustomHandler
	StrategyScanner // target implements sql.Scanner
	StrategyDefault // decided per value at run time
)

var strategyNames = [...]string{
	StrategyDirect:        "direct",
	StrategyWideningCast:  "widening",
	StrategyNarrowingCast: "narrowing",
	StrategyStringParse:   "parse",
	StrategyStringFormat:  "format",
	StrategyEnum:          "enum",
	StrategyGUIDToString:  "guid-to-string",
	StrategyStringToGUID:  "string-to-guid",
	StrategyCustomHandler: "handler",
	StrategyScanner:       "scanner",
	StrategyDefault:       "default",
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", s)
}

// ConversionRule is the resolved plan for moving one value from Source to
// Target. Rules are derived from the type pair alone.
type ConversionRule struct {
	Source   reflect.Type // nil when the source type is only known per value
	Target   reflect.Type
	Strategy Strategy
	Handler  PropertyHandler
}

// Resolve decides how values of type source become values of type target.
// A non-nil handler always wins. Pointer layers on either side are ignored
// for classification.
func Resolve(source, target reflect.Type, h PropertyHandler) (ConversionRule, error) {
	r := ConversionRule{Source: source, Target: target, Handler: h}
	if h != nil {
		r.Strategy = StrategyCustomHandler
		return r, nil
	}
	if target == nil {
		r.Strategy = StrategyDirect
		return r, nil
	}
	if source == target {
		r.Strategy = StrategyDirect
		return r, nil
	}
	dst := derefPtr(target)
	if source == nil || source == typeAny {
		if isEnum(dst) {
			r.Strategy = StrategyEnum
		} else {
			r.Strategy = StrategyDefault
		}
		return r, nil
	}
	src := derefPtr(source)

	switch {
	case src == dst:
		r.Strategy = StrategyDirect
	case isEnum(dst) || isEnum(src):
		if err := checkEnumPair(src, dst); err != nil {
			return r, err
		}
		r.Strategy = StrategyEnum
	case dst != typeUUID && dst != typeDecimal && reflect.PointerTo(dst).Implements(scannerType):
		r.Strategy = StrategyScanner
	case isText(src) && dst == typeUUID:
		r.Strategy = StrategyStringToGUID
	case src == typeUUID && isText(dst):
		r.Strategy = StrategyGUIDToString
	case isText(src) && isScalar(dst):
		r.Strategy = StrategyStringParse
	case isScalar(src) && dst.Kind() == reflect.String:
		r.Strategy = StrategyStringFormat
	case isNumeric(src) && isNumeric(dst):
		if widens(src, dst) {
			r.Strategy = StrategyWideningCast
		} else {
			r.Strategy = StrategyNarrowingCast
		}
	default:
		r.Strategy = StrategyDefault
	}
	return r, nil
}

// checkEnumPair accepts enum conversions whose other side is numeric or
// text; text into an enum additionally needs a way to parse member names.
func checkEnumPair(src, dst reflect.Type) error {
	if isEnum(dst) {
		switch {
		case isEnum(src), isNumeric(src):
			return nil
		case isText(src) && canParseEnum(dst):
			return nil
		}
		return &ConverterNotFoundError{Source: src, Target: dst}
	}
	if isNumeric(dst) || dst.Kind() == reflect.String {
		return nil
	}
	return &ConverterNotFoundError{Source: src, Target: dst}
}

// readFunc turns one non-null storage value into a value assignable to the
// rule's Target.
type readFunc func(src any) (reflect.Value, error)

// reader compiles the read direction of r.
func (r ConversionRule) reader() readFunc {
	target := r.Target
	base := derefPtr(target)
	var conv readFunc
	switch r.Strategy {
	case StrategyCustomHandler:
		h := r.Handler
		conv = func(src any) (reflect.Value, error) {
			v, err := h.FromStorage(src, base)
			if err != nil {
				return reflect.Value{}, err
			}
			if v == nil {
				return reflect.Zero(base), nil
			}
			rv := reflect.ValueOf(v)
			if rv.Type() == base {
				return rv, nil
			}
			return convertTo(v, base)
		}
	case StrategyDirect, StrategyWideningCast, StrategyNarrowingCast, StrategyDefault:
		conv = func(src any) (reflect.Value, error) { return convertTo(src, base) }
	case StrategyEnum:
		conv = func(src any) (reflect.Value, error) { return convertEnum(src, base) }
	case StrategyStringToGUID:
		conv = func(src any) (reflect.Value, error) {
			u, err := toUUID(src)
			return reflect.ValueOf(u), err
		}
	case StrategyGUIDToString:
		conv = func(src any) (reflect.Value, error) {
			if u, ok := src.(uuid.UUID); ok {
				return reflect.ValueOf(u.String()).Convert(base), nil
			}
			return convertTo(src, base)
		}
	default:
		conv = func(src any) (reflect.Value, error) { return convertTo(src, base) }
	}
	if target == base {
		return conv
	}
	return func(src any) (reflect.Value, error) {
		v, err := conv(src)
		if err != nil {
			return v, err
		}
		return wrapPointers(v, target), nil
	}
}

// writeFunc turns a non-null field value (pointers already followed) into
// the value handed to a parameter.
type writeFunc func(v reflect.Value) (any, error)

// writer compiles the write direction of r. Target is the storage Go type,
// or nil to pass values through unchanged.
func (r ConversionRule) writer() writeFunc {
	target := r.Target
	switch {
	case r.Strategy == StrategyCustomHandler:
		h := r.Handler
		return func(v reflect.Value) (any, error) { return h.ToStorage(v.Interface()) }
	case r.Strategy == StrategyEnum:
		return func(v reflect.Value) (any, error) { return writeEnum(v, target) }
	case target == nil, r.Strategy == StrategyDirect:
		return func(v reflect.Value) (any, error) { return v.Interface(), nil }
	case r.Strategy == StrategyGUIDToString:
		return func(v reflect.Value) (any, error) {
			if u, ok := v.Interface().(uuid.UUID); ok {
				return u.String(), nil
			}
			return toString(v.Interface())
		}
	}
	return func(v reflect.Value) (any, error) {
		out, err := convertTo(v.Interface(), target)
		if err != nil {
			return nil, err
		}
		return out.Interface(), nil
	}
}

func isText(t reflect.Type) bool {
	if t.Kind() == reflect.String {
		return !isEnum(t)
	}
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 && t != typeRawJSON
}

func isNumeric(t reflect.Type) bool {
	if t == typeDecimal {
		return true
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return true
	}
	return isIntegerKind(t.Kind())
}

// isScalar covers the types the fixed string table parses and formats.
func isScalar(t reflect.Type) bool {
	return isNumeric(t) || t == typeTime || t.Kind() == reflect.Bool
}

// widens reports whether every src value fits dst without loss of range.
func widens(src, dst reflect.Type) bool {
	switch {
	case src == typeDecimal:
		return false
	case dst == typeDecimal:
		return true
	}
	sk, dk := src.Kind(), dst.Kind()
	sf := sk == reflect.Float32 || sk == reflect.Float64
	df := dk == reflect.Float32 || dk == reflect.Float64
	switch {
	case sf && df:
		return dst.Bits() >= src.Bits()
	case sf:
		return false
	case df:
		return true
	}
	ss, ds := isSigned(sk), isSigned(dk)
	switch {
	case ss == ds:
		return dst.Bits() >= src.Bits()
	case !ss && ds:
		return dst.Bits() > src.Bits()
	}
	return false
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}
