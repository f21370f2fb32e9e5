package xmap

import (
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
)

// Mapper owns the catalog, the handler registry and the compiled plan caches.
// A Mapper is safe for concurrent use. Use the package-level default (see
// Default) or create one per database.
type Mapper struct {
	catalog    *Catalog
	handlers   *HandlerRegistry
	capability StorageCapability
	config     *Config
	names      NameMapper
	scope      string
	logger     *slog.Logger

	mu    sync.RWMutex
	types map[reflect.Type]StorageType

	rows  Cache[*rowPlan]
	binds Cache[*bindPlan]
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger compile events are written to.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) { m.logger = l }
}

// WithCapability sets the provider capability used for storage types and
// parameter finishing. The default is GenericCapability.
func WithCapability(c StorageCapability) Option {
	return func(m *Mapper) { m.capability = c }
}

// WithNameMapper sets how untagged field names become column names.
func WithNameMapper(f NameMapper) Option {
	return func(m *Mapper) { m.names = f }
}

// WithScope names the mapping scope. Plans compiled under different scopes
// never share cache entries.
func WithScope(scope string) Option {
	return func(m *Mapper) { m.scope = scope }
}

// WithConfig applies a loaded configuration. Options given after it win over
// the configured scope and naming.
func WithConfig(c *Config) Option {
	return func(m *Mapper) {
		m.config = c
		if c.Scope != "" {
			m.scope = c.Scope
		}
		if f, err := c.nameMapper(); err == nil {
			m.names = f
		}
	}
}

// WithHandlers shares a handler registry between mappers.
func WithHandlers(r *HandlerRegistry) Option {
	return func(m *Mapper) { m.handlers = r }
}

// NewMapper returns a Mapper with empty caches.
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		types: make(map[reflect.Type]StorageType),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.capability == nil {
		m.capability = GenericCapability{}
	}
	if m.handlers == nil {
		m.handlers = NewHandlerRegistry()
	}
	m.catalog = NewCatalog(m.names)
	m.catalog.overrides = m.config.overrides
	return m
}

// --- package-level default mapper (used by Query, Get, ExecBatch, Rebind) ---

var (
	defaultMapper     atomic.Pointer[Mapper]
	defaultMapperOnce sync.Once
)

// Default returns the package-level Mapper.
func Default() *Mapper {
	if m := defaultMapper.Load(); m != nil {
		return m
	}
	defaultMapperOnce.Do(func() {
		defaultMapper.CompareAndSwap(nil, NewMapper())
	})
	return defaultMapper.Load()
}

// SetDefault replaces the package-level Mapper.
func SetDefault(m *Mapper) { defaultMapper.Store(m) }

// Catalog returns the mapper's field catalog.
func (m *Mapper) Catalog() *Catalog { return m.catalog }

// Handlers returns the mapper's property handler registry.
func (m *Mapper) Handlers() *HandlerRegistry { return m.handlers }

// Capability returns the provider capability.
func (m *Mapper) Capability() StorageCapability { return m.capability }

// Placeholder returns the capability's positional parameter style, or
// PlaceholderQuestion.
func (m *Mapper) Placeholder() Placeholder {
	if p, ok := m.capability.(PlaceholderStyle); ok {
		return p.Placeholder()
	}
	return PlaceholderQuestion
}

// MapType maps every field declared as t (or *t) to storage type st. Call it
// before the first compile that involves t.
func (m *Mapper) MapType(t reflect.Type, st StorageType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[derefPtr(t)] = st
}

// Stats holds the counters of both plan caches.
type Stats struct {
	Rows  CacheStats
	Binds CacheStats
}

// Stats returns the plan cache counters.
func (m *Mapper) Stats() Stats {
	return Stats{Rows: m.rows.Stats(), Binds: m.binds.Stats()}
}

func (m *Mapper) scopeKey() string {
	return m.scope + "/" + m.capability.Name()
}

// storageOf resolves the storage type of f: explicit override, then the type
// map (MapType and configured types), then the capability, then a codec, then
// the structural default.
func (m *Mapper) storageOf(f *FieldDescriptor) StorageType {
	if f.Storage != StorageUnknown {
		return f.Storage
	}
	t := derefPtr(f.Type)
	m.mu.RLock()
	st, ok := m.types[t]
	m.mu.RUnlock()
	if ok {
		return st
	}
	if st, ok := m.config.storageFor(t); ok {
		return st
	}
	if st, ok := m.capability.ResolveStorageType(f); ok {
		return st
	}
	if c, ok := codecs[f.Codec]; ok {
		return c.storage
	}
	if inner, ok := nullWrapped(t); ok {
		if st, ok := defaultStorage[t]; ok {
			return st
		}
		return DefaultStorage(inner)
	}
	return DefaultStorage(t)
}

// fieldByPathAlloc walks index from root, allocating nil embedded pointers on
// the way. The final field itself is returned as is.
func fieldByPathAlloc(root reflect.Value, index []int) reflect.Value {
	v := root
	for i, x := range index {
		if i > 0 {
			for v.Kind() == reflect.Pointer {
				if v.IsNil() {
					v.Set(reflect.New(v.Type().Elem()))
				}
				v = v.Elem()
			}
		}
		v = v.Field(x)
	}
	return v
}

// fieldByPath walks index from root without allocating. ok is false when a
// nil embedded pointer is in the way.
func fieldByPath(root reflect.Value, index []int) (reflect.Value, bool) {
	v := root
	for i, x := range index {
		if i > 0 {
			for v.Kind() == reflect.Pointer {
				if v.IsNil() {
					return reflect.Value{}, false
				}
				v = v.Elem()
			}
		}
		v = v.Field(x)
	}
	return v, true
}
