package xmap

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Sentinel errors. Every typed error below reports true for errors.Is against
// its sentinel.
var (
	// ErrNoMatchedFields is returned when no column of a row set corresponds to
	// any field of a fixed struct target.
	ErrNoMatchedFields = errors.New("xmap: no column matches a target field")

	// ErrNoMappableFields is returned when a struct target exposes no exported,
	// mappable field at all.
	ErrNoMappableFields = errors.New("xmap: type has no mappable fields")

	// ErrConverterNotFound is returned when no conversion exists between a
	// field and its resolved storage representation.
	ErrConverterNotFound = errors.New("xmap: converter not found")

	// ErrPropertyNotFound is returned when a parameter sink lacks a setter the
	// compiled plan needs (size, precision, scale, direction).
	ErrPropertyNotFound = errors.New("xmap: parameter property not found")

	// ErrFieldNotFound is returned when a bind field list names a field the
	// entity type does not have.
	ErrFieldNotFound = errors.New("xmap: field not found")
)

// NoMatchedFieldsError reports the target type and the columns that were
// offered when none of them matched.
type NoMatchedFieldsError struct {
	Type    reflect.Type
	Columns []string
}

func (e *NoMatchedFieldsError) Error() string {
	return fmt.Sprintf("xmap: no column of [%s] matches a field of %s",
		strings.Join(e.Columns, ", "), e.Type)
}

// Is reports whether target is ErrNoMatchedFields.
func (e *NoMatchedFieldsError) Is(target error) bool { return target == ErrNoMatchedFields }

// NoMappableFieldsError reports a struct type without usable fields.
type NoMappableFieldsError struct {
	Type reflect.Type
}

func (e *NoMappableFieldsError) Error() string {
	return fmt.Sprintf("xmap: %s has no mappable fields", e.Type)
}

// Is reports whether target is ErrNoMappableFields.
func (e *NoMappableFieldsError) Is(target error) bool { return target == ErrNoMappableFields }

// ConverterNotFoundError reports a field whose value cannot be converted to or
// from its resolved storage type.
type ConverterNotFoundError struct {
	Field   string
	Source  reflect.Type
	Target  reflect.Type
	Storage StorageType
}

func (e *ConverterNotFoundError) Error() string {
	var b strings.Builder
	b.WriteString("xmap: no converter")
	if e.Field != "" {
		fmt.Fprintf(&b, " for field %s", e.Field)
	}
	fmt.Fprintf(&b, " from %s to %s", typeName(e.Source), typeName(e.Target))
	if e.Storage != StorageUnknown {
		fmt.Fprintf(&b, " (storage %s)", e.Storage)
	}
	return b.String()
}

// Is reports whether target is ErrConverterNotFound.
func (e *ConverterNotFoundError) Is(target error) bool { return target == ErrConverterNotFound }

// PropertyNotFoundError reports a parameter type that does not expose a
// setter the bind plan relies on.
type PropertyNotFoundError struct {
	Property  string
	Parameter reflect.Type
}

func (e *PropertyNotFoundError) Error() string {
	return fmt.Sprintf("xmap: parameter type %s has no %s setter", e.Parameter, e.Property)
}

// Is reports whether target is ErrPropertyNotFound.
func (e *PropertyNotFoundError) Is(target error) bool { return target == ErrPropertyNotFound }

// FieldNotFoundError reports an unknown field name in a bind field list.
type FieldNotFoundError struct {
	Type  reflect.Type
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("xmap: %s has no field %q", e.Type, e.Field)
}

// Is reports whether target is ErrFieldNotFound.
func (e *FieldNotFoundError) Is(target error) bool { return target == ErrFieldNotFound }

// ConversionError wraps a failure converting a single value at run time, for
// example a numeric overflow or an unparsable string.
type ConversionError struct {
	Field string
	Value any
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("xmap: convert %T(%v): %v", e.Value, e.Value, e.Err)
	}
	return fmt.Sprintf("xmap: convert %s from %T(%v): %v", e.Field, e.Value, e.Value, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// IsNoMatchedFields returns true if err is or wraps a NoMatchedFieldsError.
func IsNoMatchedFields(err error) bool { return errors.Is(err, ErrNoMatchedFields) }

// IsConverterNotFound returns true if err is or wraps a ConverterNotFoundError.
func IsConverterNotFound(err error) bool { return errors.Is(err, ErrConverterNotFound) }

// IsPropertyNotFound returns true if err is or wraps a PropertyNotFoundError.
func IsPropertyNotFound(err error) bool { return errors.Is(err, ErrPropertyNotFound) }

func typeName(t reflect.Type) string {
	if t == nil {
		return "<unknown>"
	}
	return t.String()
}
