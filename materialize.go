package xmap

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"
)

// RowFunc copies the current row of src into dst, which must be a settable
// value of the type the function was compiled for.
type RowFunc func(src RowSource, dst reflect.Value) error

var errZeroColumns = errors.New("xmap: row set has zero columns")

type planKind uint8

const (
	planStruct planKind = iota
	planRecord
	planScalar
)

type rowPlan struct {
	kind    planKind
	target  reflect.Type
	base    reflect.Type // target without pointer layers
	columns []string
	steps   []rowStep
}

// rowStep moves one column into one field.
type rowStep struct {
	ordinal int
	field   string
	index   []int
	read    readFunc
	wrap    reflect.Type // Null* wrapper the read value goes into, if any
	wrapTo  reflect.Type // declared field type around wrap
}

// CompileRows returns the routine that materializes rows with the given
// column names (and optional per-column source types) into values of target.
// Routines are cached per shape.
func (m *Mapper) CompileRows(columns []string, types []reflect.Type, target reflect.Type) (RowFunc, error) {
	if len(columns) == 0 {
		return nil, errZeroColumns
	}
	sig, shape := newRowSignature(m.scopeKey(), target, columns, types)
	p, err := m.rows.GetOrCompile(sig, shape, func() (*rowPlan, error) {
		p, err := m.compileRows(columns, types, target)
		if err != nil {
			return nil, err
		}
		m.logger.Debug("compiled row plan",
			"target", target.String(),
			"columns", len(columns),
			"matched", len(p.steps),
			"hash", sig.Hash,
			"scope", sig.Scope,
		)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return p.run, nil
}

func (m *Mapper) compileRows(columns []string, types []reflect.Type, target reflect.Type) (*rowPlan, error) {
	p := &rowPlan{
		target:  target,
		base:    derefPtr(target),
		columns: append([]string(nil), columns...),
	}
	typeAt := func(i int) reflect.Type {
		if i < len(types) {
			return types[i]
		}
		return nil
	}

	switch {
	case p.base == recordType:
		p.kind = planRecord
		return p, nil

	case p.base.Kind() == reflect.Struct && !isLeafStruct(p.base):
		p.kind = planStruct
		ti := m.catalog.Describe(p.base)
		if len(ti.Fields) == 0 {
			return nil, &NoMappableFieldsError{Type: p.base}
		}
		claimed := make(map[*FieldDescriptor]int, len(ti.Fields))
		for i, c := range columns {
			f, ok := ti.Lookup(c)
			if !ok {
				continue
			}
			if first, dup := claimed[f]; dup {
				m.logger.Warn("duplicate column dropped",
					"target", p.base.String(),
					"field", f.Name,
					"column", c,
					"kept", columns[first],
				)
				continue
			}
			claimed[f] = i
			st, err := m.readStep(p.base, f, i, typeAt(i))
			if err != nil {
				return nil, err
			}
			p.steps = append(p.steps, st)
		}
		if len(p.steps) == 0 {
			return nil, &NoMatchedFieldsError{Type: p.base, Columns: p.columns}
		}
		return p, nil
	}

	p.kind = planScalar
	if len(columns) != 1 {
		return nil, fmt.Errorf("xmap: cannot map %d columns into %s; use a struct", len(columns), target)
	}
	f := &FieldDescriptor{Name: columns[0], MappedName: columns[0], Type: p.base}
	st, err := m.readStep(nil, f, 0, typeAt(0))
	if err != nil {
		return nil, err
	}
	p.steps = []rowStep{st}
	return p, nil
}

// readStep resolves the read-direction conversion of column ordinal into f.
func (m *Mapper) readStep(entity reflect.Type, f *FieldDescriptor, ordinal int, source reflect.Type) (rowStep, error) {
	st := rowStep{ordinal: ordinal, field: f.Name, index: f.Index}
	storage := m.storageOf(f)
	h := m.handlers.Lookup(entity, f, storage)
	if h == nil {
		if err := checkEnumStorage(f, storage, true); err != nil {
			return st, err
		}
	}
	target := f.Type
	if base := derefPtr(target); !reflect.PointerTo(base).Implements(scannerType) {
		if inner, ok := nullWrapped(base); ok {
			st.wrap, st.wrapTo = base, target
			target = inner
		}
	}
	rule, err := Resolve(source, target, h)
	if err != nil {
		if e, ok := err.(*ConverterNotFoundError); ok {
			e.Field, e.Storage = f.Name, storage
		}
		return st, err
	}
	st.read = rule.reader()
	return st, nil
}

// checkEnumStorage rejects enum fields whose storage type cannot carry them.
// Text storage is only readable back when the enum can parse its names.
func checkEnumStorage(f *FieldDescriptor, storage StorageType, read bool) error {
	t := derefPtr(f.Type)
	if !isEnum(t) {
		return nil
	}
	switch storage {
	case StorageString, StorageAnsiString:
		if !read || canParseEnum(t) {
			return nil
		}
	case StorageInt8, StorageInt16, StorageInt32, StorageInt64,
		StorageUint8, StorageUint16, StorageUint32, StorageUint64,
		StorageFloat32, StorageFloat64, StorageDecimal:
		return nil
	}
	return &ConverterNotFoundError{Field: f.Name, Source: storage.GoType(), Target: f.Type, Storage: storage}
}

func (p *rowPlan) run(src RowSource, dst reflect.Value) error {
	for dst.Kind() == reflect.Pointer {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		dst = dst.Elem()
	}
	nulls, _ := src.(NullChecker)

	if p.kind == planRecord {
		rec := NewRecord(len(p.columns))
		for i, c := range p.columns {
			v := src.Value(i)
			if nulls != nil && nulls.IsNull(i) {
				v = nil
			}
			rec.add(c, ValueOf(v))
		}
		dst.Set(reflect.ValueOf(*rec))
		return nil
	}

	for i := range p.steps {
		st := &p.steps[i]
		v := src.Value(st.ordinal)
		if v == nil || (nulls != nil && nulls.IsNull(st.ordinal)) {
			continue
		}
		out, err := st.read(v)
		if err != nil {
			return &ConversionError{Field: st.field, Value: v, Err: err}
		}
		if st.wrap != nil {
			w := reflect.New(st.wrap).Elem()
			w.Field(0).Set(out)
			w.Field(1).SetBool(true)
			out = wrapPointers(w, st.wrapTo)
		}
		if p.kind == planScalar {
			dst.Set(out)
			continue
		}
		fieldByPathAlloc(dst, st.index).Set(out)
	}
	return nil
}

// Materialize returns an iterator over the rows of src as values of T. The
// row plan is compiled (or fetched from m's cache) when the first row
// arrives, so an empty row set yields nothing even if no column matches T.
// Iteration stops at the first error, which is yielded with the zero T.
// A nil m means Default().
//
//	for u, err := range xmap.Materialize[User](ctx, nil, src) {
//	    if err != nil { return err }
//	    ...
//	}
func Materialize[T any](ctx context.Context, m *Mapper, src RowSource) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if m == nil {
			m = Default()
		}
		columns, types := shapeOf(src)
		if len(columns) == 0 {
			yield(zero, errZeroColumns)
			return
		}
		var fn RowFunc
		for {
			ok, err := advance(ctx, src)
			if err != nil {
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			if fn == nil {
				if fn, err = m.CompileRows(columns, types, reflect.TypeFor[T]()); err != nil {
					yield(zero, err)
					return
				}
			}
			var v T
			if err := fn(src, reflect.ValueOf(&v).Elem()); err != nil {
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Collect drains Materialize into a slice.
func Collect[T any](ctx context.Context, m *Mapper, src RowSource) ([]T, error) {
	var out []T
	for v, err := range Materialize[T](ctx, m, src) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func shapeOf(src RowSource) ([]string, []reflect.Type) {
	n := src.FieldCount()
	columns := make([]string, n)
	for i := range columns {
		columns[i] = src.Name(i)
	}
	ts, ok := src.(TypedRowSource)
	if !ok {
		return columns, nil
	}
	types := make([]reflect.Type, n)
	for i := range types {
		types[i] = ts.Type(i)
	}
	return columns, types
}

func advance(ctx context.Context, src RowSource) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if cs, ok := src.(ContextRowSource); ok {
		return cs.NextContext(ctx)
	}
	return src.Next()
}
