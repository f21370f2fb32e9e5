package xmap

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// BindFunc writes the parameters of a batch of entities into sink. batch is
// a slice or array value holding exactly as many entities as the function was
// compiled for.
type BindFunc func(sink ParameterSink, batch reflect.Value) error

type bindPlan struct {
	m       *Mapper
	entity  reflect.Type
	batch   int
	dynamic bool
	steps   []bindStep
	cap     StorageCapability

	values sync.Map // dynamicKey -> *bindStep, schema-less entities only
}

// dynamicKey selects the write step for one name of a schema-less entity
// holding a value of type t.
type dynamicKey struct {
	name string
	t    reflect.Type
}

// bindStep produces one parameter per entity.
type bindStep struct {
	name      string
	field     string
	index     []int
	storage   StorageType
	write     writeFunc
	wrapped   bool // Null* wrapper: read Valid, then the value field
	nullable  bool
	zero      any // written for absent values when not nullable
	size      int
	precision int
	scale     int
	direction Direction
}

// CompileBinder returns the routine that writes fields of batch entities of
// type entity as parameters. fields selects and orders the fields by mapped
// or Go name; an empty list means every field in declaration order. Inputs
// are written before output-only fields.
//
// Schema-less entities (maps keyed by a string type, Record, *Record) need an
// explicit field list; each value is bound through the storage rules of its
// dynamic type, as a nullable field.
func (m *Mapper) CompileBinder(entity reflect.Type, sink ParameterSink, fields []string, batch int) (BindFunc, error) {
	if batch < 1 {
		return nil, fmt.Errorf("xmap: batch size must be positive, got %d", batch)
	}
	sig, shape := newBindSignature(m.scopeKey(), entity, reflect.TypeOf(sink), fields, batch)
	p, err := m.binds.GetOrCompile(sig, shape, func() (*bindPlan, error) {
		p, err := m.compileBinder(entity, sink, fields, batch)
		if err != nil {
			return nil, err
		}
		m.logger.Debug("compiled bind plan",
			"entity", entity.String(),
			"fields", len(p.steps),
			"batch", batch,
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

func (m *Mapper) compileBinder(entity reflect.Type, sink ParameterSink, fields []string, batch int) (*bindPlan, error) {
	p := &bindPlan{m: m, entity: entity, batch: batch, cap: m.capability}
	base := derefPtr(entity)

	if schemaless(base) {
		if len(fields) == 0 {
			return nil, fmt.Errorf("xmap: binding %s needs an explicit field list", entity)
		}
		p.dynamic = true
		for _, name := range fields {
			p.steps = append(p.steps, bindStep{name: name, field: name})
		}
		return p, nil
	}

	if base.Kind() != reflect.Struct || isLeafStruct(base) {
		return nil, &NoMappableFieldsError{Type: base}
	}
	ti := m.catalog.Describe(base)
	if len(ti.Fields) == 0 {
		return nil, &NoMappableFieldsError{Type: base}
	}
	selected := ti.Fields
	if len(fields) > 0 {
		selected = make([]*FieldDescriptor, 0, len(fields))
		for _, name := range fields {
			f, ok := ti.Field(name)
			if !ok {
				return nil, &FieldNotFoundError{Type: base, Field: name}
			}
			selected = append(selected, f)
		}
	}

	var inputs, outputs []bindStep
	for _, f := range selected {
		st, err := m.writeStep(base, f)
		if err != nil {
			return nil, err
		}
		if f.Direction == Output {
			outputs = append(outputs, st)
		} else {
			inputs = append(inputs, st)
		}
	}
	p.steps = append(inputs, outputs...)

	if err := checkSetters(sink.CreateParameter(), p.steps); err != nil {
		return nil, err
	}
	return p, nil
}

// writeStep resolves the write-direction conversion of f to its storage type.
func (m *Mapper) writeStep(entity reflect.Type, f *FieldDescriptor) (bindStep, error) {
	storage := m.storageOf(f)
	st := bindStep{
		name:      f.MappedName,
		field:     f.Name,
		index:     f.Index,
		storage:   storage,
		size:      f.Size,
		precision: f.Precision,
		scale:     f.Scale,
		direction: f.Direction,
		nullable:  f.Nullable,
		zero:      zeroStorage(storage),
	}
	h := m.handlers.Lookup(entity, f, storage)
	if h == nil {
		if err := checkEnumStorage(f, storage, false); err != nil {
			return st, err
		}
	}
	source := derefPtr(f.Type)
	if inner, ok := nullWrapped(source); ok && h == nil {
		st.wrapped = true
		source = derefPtr(inner)
	}
	rule, err := Resolve(source, storage.GoType(), h)
	if err != nil {
		if e, ok := err.(*ConverterNotFoundError); ok {
			e.Field, e.Storage = f.Name, storage
		}
		return st, err
	}
	st.write = rule.writer()
	return st, nil
}

// checkSetters probes a parameter for the optional setters the plan uses.
func checkSetters(probe Parameter, steps []bindStep) error {
	pt := reflect.TypeOf(probe)
	for _, st := range steps {
		if st.size > 0 {
			if _, ok := probe.(SizedParameter); !ok {
				return &PropertyNotFoundError{Property: "Size", Parameter: pt}
			}
		}
		if st.precision > 0 || st.scale > 0 {
			if _, ok := probe.(PrecisionParameter); !ok {
				return &PropertyNotFoundError{Property: "Precision", Parameter: pt}
			}
		}
		if st.direction != Input {
			if _, ok := probe.(DirectionalParameter); !ok {
				return &PropertyNotFoundError{Property: "Direction", Parameter: pt}
			}
		}
	}
	return nil
}

func (p *bindPlan) run(sink ParameterSink, batch reflect.Value) error {
	if n := batch.Len(); n != p.batch {
		return fmt.Errorf("xmap: bind plan for %d entities got %d", p.batch, n)
	}
	sink.Clear()
	for i := 0; i < p.batch; i++ {
		ev := batch.Index(i)
		for ev.Kind() == reflect.Pointer || ev.Kind() == reflect.Interface {
			if ev.IsNil() {
				return fmt.Errorf("xmap: entity %d is nil", i)
			}
			ev = ev.Elem()
		}
		for j := range p.steps {
			st := &p.steps[j]
			prm := sink.CreateParameter()
			prm.SetName(parameterName(st.name, i))
			storage := st.storage
			if st.direction != Output {
				var (
					v   any
					err error
				)
				if p.dynamic {
					v, storage, err = p.dynamicValue(ev, st.name)
				} else {
					v, err = st.value(ev)
				}
				if err != nil {
					return err
				}
				prm.SetValue(v)
			}
			prm.SetStorageType(storage)
			if st.size > 0 {
				prm.(SizedParameter).SetSize(st.size)
			}
			if st.precision > 0 || st.scale > 0 {
				pp := prm.(PrecisionParameter)
				pp.SetPrecision(st.precision)
				pp.SetScale(st.scale)
			}
			if st.direction != Input {
				prm.(DirectionalParameter).SetDirection(st.direction)
			}
			p.cap.ApplyExtendedType(prm, storage)
			sink.Add(prm)
		}
	}
	return nil
}

// value reads and converts the field of entity ev.
func (st *bindStep) value(ev reflect.Value) (any, error) {
	fv, ok := fieldByPath(ev, st.index)
	if !ok {
		return st.absent(), nil
	}
	return st.convert(fv)
}

// convert follows pointers and Null* wrappers of fv and applies the write
// rule.
func (st *bindStep) convert(fv reflect.Value) (any, error) {
	for fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return st.absent(), nil
		}
		fv = fv.Elem()
	}
	switch fv.Kind() {
	case reflect.Map, reflect.Slice:
		if fv.IsNil() {
			return st.absent(), nil
		}
	}
	if st.wrapped {
		inner, ok := unwrapNull(fv)
		if !ok {
			return st.absent(), nil
		}
		fv = inner
		for fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				return st.absent(), nil
			}
			fv = fv.Elem()
		}
	}
	out, err := st.write(fv)
	if err != nil {
		return nil, &ConversionError{Field: st.field, Value: fv.Interface(), Err: err}
	}
	return out, nil
}

// absent is the value bound when the field holds no value: nil, the NULL
// marker, for nullable fields, else the zero value of the storage type.
func (st *bindStep) absent() any {
	if st.nullable {
		return nil
	}
	return st.zero
}

// zeroStorage returns the zero value written for storage type s. Storage
// types without a Go type (array, unknown) have none and bind NULL.
func zeroStorage(s StorageType) any {
	switch s {
	case StorageBinary:
		return []byte{}
	case StorageJSON:
		return json.RawMessage("null")
	}
	if t := s.GoType(); t != nil {
		return reflect.Zero(t).Interface()
	}
	return nil
}

// dynamicValue reads and converts name from a schema-less entity. Write
// steps are compiled once per name and value type.
func (p *bindPlan) dynamicValue(ev reflect.Value, name string) (any, StorageType, error) {
	v := lookupDynamic(ev, name)
	if v == nil {
		return nil, StorageUnknown, nil
	}
	key := dynamicKey{name: name, t: reflect.TypeOf(v)}
	cached, ok := p.values.Load(key)
	if !ok {
		f := &FieldDescriptor{Name: name, MappedName: name, Type: key.t, Nullable: true}
		st, err := p.m.writeStep(derefPtr(p.entity), f)
		if err != nil {
			return nil, StorageUnknown, err
		}
		cached, _ = p.values.LoadOrStore(key, &st)
	}
	st := cached.(*bindStep)
	out, err := st.convert(reflect.ValueOf(v))
	return out, st.storage, err
}

// lookupDynamic reads name from a map or Record entity: exact key first, then
// case-insensitive.
func lookupDynamic(ev reflect.Value, name string) any {
	switch ev.Kind() {
	case reflect.Map:
		key := reflect.ValueOf(name).Convert(ev.Type().Key())
		if x := ev.MapIndex(key); x.IsValid() {
			return x.Interface()
		}
		iter := ev.MapRange()
		for iter.Next() {
			if strings.EqualFold(iter.Key().String(), name) {
				return iter.Value().Interface()
			}
		}
	case reflect.Struct:
		rec := ev.Interface().(Record)
		if x, ok := rec.Get(name); ok {
			return x.Interface()
		}
	}
	return nil
}

func schemaless(t reflect.Type) bool {
	if t == recordType {
		return true
	}
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

// parameterName is name for the first entity of a batch and name_i after.
func parameterName(name string, i int) string {
	if i == 0 {
		return name
	}
	return name + "_" + strconv.Itoa(i)
}

// Bind writes entities into sink through m's compiled bind plan for T. A nil
// m means Default().
//
//	var ps xmap.Params
//	err := xmap.Bind(nil, &ps, []Order{a, b}, "ID", "Amount")
//	// ps: ID, Amount, ID_1, Amount_1
func Bind[T any](m *Mapper, sink ParameterSink, entities []T, fields ...string) error {
	if m == nil {
		m = Default()
	}
	if len(entities) == 0 {
		sink.Clear()
		return nil
	}
	fn, err := m.CompileBinder(reflect.TypeFor[T](), sink, fields, len(entities))
	if err != nil {
		return err
	}
	return fn(sink, reflect.ValueOf(entities))
}
