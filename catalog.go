package xmap

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Direction tells whether a field's value flows into a command, out of it, or
// both.
type Direction uint8

const (
	Input Direction = iota
	Output
	InputOutput
)

func (d Direction) String() string {
	switch d {
	case Output:
		return "output"
	case InputOutput:
		return "inout"
	}
	return "input"
}

// ParseDirection accepts input, output, inout (and in, out).
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "in", "input":
		return Input, true
	case "out", "output":
		return Output, true
	case "inout", "inputoutput":
		return InputOutput, true
	}
	return Input, false
}

// FieldDescriptor describes one mappable struct field. Descriptors are built
// once per type by a Catalog and never mutated afterwards.
type FieldDescriptor struct {
	Name       string       // Go field name
	MappedName string       // column / parameter name
	Type       reflect.Type // declared Go type
	Nullable   bool
	Size       int
	Precision  int
	Scale      int
	Direction  Direction
	Storage    StorageType // explicit storage override; StorageUnknown if none
	Codec      string      // built-in property handler name ("json", "msgpack")
	Index      []int       // reflect index path from the root struct

	named bool // MappedName comes from a tag or a config column
}

// TypeInfo is the cached description of a struct type.
type TypeInfo struct {
	Type   reflect.Type
	Fields []*FieldDescriptor

	byName map[string]*FieldDescriptor // lower-cased name -> field
	byFold map[string]*FieldDescriptor // folded name -> field
	byGo   map[string]*FieldDescriptor // lower-cased Go name -> field
}

// Lookup finds a field by mapped name: case-insensitive first, then ignoring
// diacritics and underscores. The Go name of a field without an explicit
// column name is accepted when no mapped name claims it; an explicit name
// replaces the Go name.
func (ti *TypeInfo) Lookup(name string) (*FieldDescriptor, bool) {
	if f, ok := ti.byName[normalizeColumn(name)]; ok {
		return f, true
	}
	f, ok := ti.byFold[foldName(name)]
	return f, ok
}

// Field is Lookup that also accepts the Go name of every field.
func (ti *TypeInfo) Field(name string) (*FieldDescriptor, bool) {
	if f, ok := ti.Lookup(name); ok {
		return f, true
	}
	f, ok := ti.byGo[strings.ToLower(name)]
	return f, ok
}

// Catalog reflects over struct types once and caches the result.
type Catalog struct {
	cache     sync.Map // reflect.Type -> *TypeInfo
	names     NameMapper
	overrides func(reflect.Type) map[string]FieldOverride
}

// NewCatalog returns a catalog deriving untagged names with names (nil means
// IdentityName).
func NewCatalog(names NameMapper) *Catalog {
	if names == nil {
		names = IdentityName
	}
	return &Catalog{names: names}
}

// Describe returns the fields of t (pointers are dereferenced). The same
// *TypeInfo is returned for every call with the same type. Non-struct types
// describe to zero fields.
func (c *Catalog) Describe(t reflect.Type) *TypeInfo {
	t = derefPtr(t)
	if v, ok := c.cache.Load(t); ok {
		return v.(*TypeInfo)
	}
	ti := c.build(t)
	v, _ := c.cache.LoadOrStore(t, ti)
	return v.(*TypeInfo)
}

func (c *Catalog) build(rt reflect.Type) *TypeInfo {
	ti := &TypeInfo{
		Type:   rt,
		byName: make(map[string]*FieldDescriptor),
		byFold: make(map[string]*FieldDescriptor),
		byGo:   make(map[string]*FieldDescriptor),
	}
	if rt.Kind() != reflect.Struct {
		return ti
	}
	var overrides map[string]FieldOverride
	if c.overrides != nil {
		overrides = c.overrides(rt)
	}

	var walk func(t reflect.Type, base []int, forceInline bool)
	walk = func(t reflect.Type, base []int, forceInline bool) {
		t = derefPtr(t)
		if t.Kind() != reflect.Struct {
			return
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" && !sf.Anonymous {
				continue
			}
			raw := sf.Tag.Get("db")
			tag := parseTag(raw)
			if tag.omit {
				continue
			}
			path := append(append([]int(nil), base...), i)

			if tag.inline || (sf.Anonymous && (forceInline || raw == "")) {
				if isStruct(sf.Type) && !isLeafStruct(derefPtr(sf.Type)) {
					walk(sf.Type, path, tag.inline)
					continue
				}
			}
			if sf.PkgPath != "" {
				continue
			}
			fd := &FieldDescriptor{
				Name:       sf.Name,
				MappedName: tag.name,
				Type:       sf.Type,
				Nullable:   tag.nullable || nullableType(sf.Type),
				Size:       tag.size,
				Precision:  tag.precision,
				Scale:      tag.scale,
				Direction:  tag.direction,
				Storage:    tag.storage,
				Codec:      tag.codec,
				Index:      path,
				named:      tag.name != "",
			}
			if fd.MappedName == "" {
				fd.MappedName = c.names(sf.Name)
			}
			if o, ok := overrides[sf.Name]; ok {
				o.apply(fd)
			}
			ti.Fields = append(ti.Fields, fd)
		}
	}
	walk(rt, nil, false)

	// Mapped names claim keys before Go names; the first declared field wins.
	for _, f := range ti.Fields {
		claim(ti.byName, normalizeColumn(f.MappedName), f)
		claim(ti.byFold, foldName(f.MappedName), f)
	}
	for _, f := range ti.Fields {
		claim(ti.byGo, strings.ToLower(f.Name), f)
		if f.named {
			continue
		}
		claim(ti.byName, normalizeColumn(f.Name), f)
		claim(ti.byFold, foldName(f.Name), f)
	}
	return ti
}

func claim(m map[string]*FieldDescriptor, key string, f *FieldDescriptor) {
	if _, ok := m[key]; !ok {
		m[key] = f
	}
}

type tagSpec struct {
	name      string
	inline    bool
	omit      bool
	nullable  bool
	size      int
	precision int
	scale     int
	direction Direction
	storage   StorageType
	codec     string
}

// parseTag reads a db tag: "-", "col", ",inline", "col,size=40,type=ansistring",
// "total,output", "meta,codec=json". The first bare word that is not a known
// option is the column name.
func parseTag(tag string) tagSpec {
	var ts tagSpec
	if tag == "-" {
		ts.omit = true
		return ts
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, hasVal := strings.Cut(part, "=")
		switch {
		case hasVal && key == "size":
			ts.size, _ = strconv.Atoi(val)
		case hasVal && key == "precision":
			ts.precision, _ = strconv.Atoi(val)
		case hasVal && key == "scale":
			ts.scale, _ = strconv.Atoi(val)
		case hasVal && key == "type":
			ts.storage, _ = ParseStorageType(val)
		case hasVal && key == "codec":
			ts.codec = strings.ToLower(val)
		case hasVal && key == "direction":
			ts.direction, _ = ParseDirection(val)
		case part == "inline":
			ts.inline = true
		case part == "nullable":
			ts.nullable = true
		case part == "output":
			ts.direction = Output
		case part == "inout":
			ts.direction = InputOutput
		case ts.name == "" && !hasVal:
			ts.name = part
		}
	}
	return ts
}

// nullableType reports whether a Go type can carry the database NULL:
// pointers, interfaces, maps, slices and Null* wrapper structs.
func nullableType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	case reflect.Struct:
		_, ok := nullWrapped(t)
		return ok
	}
	return false
}

// isLeafStruct reports struct types that map to a single column rather than
// being flattened.
func isLeafStruct(t reflect.Type) bool {
	if _, ok := defaultStorage[t]; ok {
		return true
	}
	return reflect.PointerTo(t).Implements(scannerType) || t.Implements(valuerType)
}

func isStruct(t reflect.Type) bool { return derefPtr(t).Kind() == reflect.Struct }

func derefPtr(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
