package xmap

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// PropertyHandler is a user-supplied bidirectional value transform. When one
// applies to a field it replaces the default conversion rules in both
// directions.
type PropertyHandler interface {
	// ToStorage converts a non-null field value into the parameter value.
	ToStorage(v any) (any, error)
	// FromStorage converts a non-null column value into a value of type t.
	FromStorage(v any, t reflect.Type) (any, error)
}

// Handler adapts a pair of typed functions into a PropertyHandler.
//
//	xmap.Handler[Money]{
//	    To:   func(m Money) (any, error) { return m.Cents, nil },
//	    From: func(v any) (Money, error) { ... },
//	}
type Handler[T any] struct {
	To   func(T) (any, error)
	From func(any) (T, error)
}

// ToStorage implements PropertyHandler.
func (h Handler[T]) ToStorage(v any) (any, error) {
	t, ok := v.(T)
	if !ok {
		return nil, fmt.Errorf("xmap: handler for %T got %T", *new(T), v)
	}
	return h.To(t)
}

// FromStorage implements PropertyHandler.
func (h Handler[T]) FromStorage(v any, _ reflect.Type) (any, error) { return h.From(v) }

// JSONCodec stores values as JSON documents.
type JSONCodec struct{}

func (JSONCodec) ToStorage(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

func (JSONCodec) FromStorage(v any, t reflect.Type) (any, error) {
	b, err := toBytes(v)
	if err != nil {
		return nil, fmt.Errorf("json codec: %T is not text", v)
	}
	p := reflect.New(t)
	if err := json.Unmarshal(b, p.Interface()); err != nil {
		return nil, err
	}
	return p.Elem().Interface(), nil
}

// MsgpackCodec stores values as MessagePack blobs.
type MsgpackCodec struct{}

func (MsgpackCodec) ToStorage(v any) (any, error) { return msgpack.Marshal(v) }

func (MsgpackCodec) FromStorage(v any, t reflect.Type) (any, error) {
	b, err := toBytes(v)
	if err != nil {
		return nil, fmt.Errorf("msgpack codec: %T is not binary", v)
	}
	p := reflect.New(t)
	if err := msgpack.Unmarshal(b, p.Interface()); err != nil {
		return nil, err
	}
	return p.Elem().Interface(), nil
}

// codecs are the handlers selectable with the codec= tag option, together
// with the storage type they imply.
var codecs = map[string]struct {
	handler PropertyHandler
	storage StorageType
}{
	"json":    {JSONCodec{}, StorageJSON},
	"msgpack": {MsgpackCodec{}, StorageBinary},
}

type fieldKey struct {
	entity reflect.Type
	field  string
}

// HandlerRegistry holds PropertyHandlers by field, by Go type, and by storage
// type. Register everything before the first query or bind: compiled plans
// capture the handler in effect when they were compiled.
type HandlerRegistry struct {
	mu      sync.RWMutex
	fields  map[fieldKey]PropertyHandler
	types   map[reflect.Type]PropertyHandler
	storage map[StorageType]PropertyHandler
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		fields:  make(map[fieldKey]PropertyHandler),
		types:   make(map[reflect.Type]PropertyHandler),
		storage: make(map[StorageType]PropertyHandler),
	}
}

// RegisterField installs h for one field (Go field name) of entity.
func (r *HandlerRegistry) RegisterField(entity reflect.Type, field string, h PropertyHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[fieldKey{derefPtr(entity), field}] = h
}

// RegisterType installs h for every field declared as t (or *t).
func (r *HandlerRegistry) RegisterType(t reflect.Type, h PropertyHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[derefPtr(t)] = h
}

// RegisterStorage installs h for every field whose storage type is st.
func (r *HandlerRegistry) RegisterStorage(st StorageType, h PropertyHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[st] = h
}

// Lookup returns the handler for f of entity: field registration first, then
// the field's Go type, then its storage type, then a codec tag. nil means the
// default conversion rules apply.
func (r *HandlerRegistry) Lookup(entity reflect.Type, f *FieldDescriptor, st StorageType) PropertyHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.fields[fieldKey{derefPtr(entity), f.Name}]; ok {
		return h
	}
	if h, ok := r.types[derefPtr(f.Type)]; ok {
		return h
	}
	if h, ok := r.storage[st]; ok {
		return h
	}
	if c, ok := codecs[f.Codec]; ok {
		return c.handler
	}
	return nil
}
