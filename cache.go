package xmap

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"
)

type signatureKind uint8

const (
	rowSignature signatureKind = iota + 1
	bindSignature
)

// Signature identifies a shape: everything a compiled routine depends on.
// Two operations with equal signatures are served by the same routine.
type Signature struct {
	kind   signatureKind
	Target reflect.Type // record or entity type
	Sink   reflect.Type // sink type for bind plans
	Scope  string       // capability / connection identity
	Hash   uint64       // xxh3 of the ordered names (and column types)
	Count  int          // number of columns or fields
	Batch  int          // entities per bind call
}

func newRowSignature(scope string, target reflect.Type, columns []string, types []reflect.Type) (Signature, string) {
	var b strings.Builder
	for i, c := range columns {
		b.WriteString(c)
		b.WriteByte(0)
		if i < len(types) && types[i] != nil {
			b.WriteString(types[i].String())
		}
		b.WriteByte(0)
	}
	s := b.String()
	return Signature{
		kind:   rowSignature,
		Target: target,
		Scope:  scope,
		Hash:   xxh3.HashString(s),
		Count:  len(columns),
	}, s
}

func newBindSignature(scope string, entity, sink reflect.Type, fields []string, batch int) (Signature, string) {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f)
		b.WriteByte(0)
	}
	b.WriteString(strconv.Itoa(batch))
	s := b.String()
	return Signature{
		kind:   bindSignature,
		Target: entity,
		Sink:   sink,
		Scope:  scope,
		Hash:   xxh3.HashString(s),
		Count:  len(fields),
		Batch:  batch,
	}, s
}

func (s Signature) String() string {
	return fmt.Sprintf("%d/%v/%v/%s/%016x/%d/%d", s.kind, s.Target, s.Sink, s.Scope, s.Hash, s.Count, s.Batch)
}

// CacheStats is a point-in-time snapshot of a cache's counters.
type CacheStats struct {
	Entries    int64
	Hits       int64
	Misses     int64
	Compiles   int64
	Collisions int64
}

// Cache memoizes compiled routines by Signature. It only grows: entries are
// never replaced or evicted. Concurrent misses on one signature compile once;
// a racing publisher that loses keeps using the published value.
type Cache[V any] struct {
	entries sync.Map // Signature -> *cacheEntry[V]
	group   singleflight.Group

	size       atomic.Int64
	hits       atomic.Int64
	misses     atomic.Int64
	compiles   atomic.Int64
	collisions atomic.Int64
}

// cacheEntry keeps the exact text the signature hash was computed from; it
// is compared on every lookup.
type cacheEntry[V any] struct {
	shape string
	value V
}

// GetOrCompile returns the routine published for sig, compiling it with
// compile on first use. Compile errors are returned and not cached.
func (c *Cache[V]) GetOrCompile(sig Signature, sh string, compile func() (V, error)) (V, error) {
	if v, ok := c.entries.Load(sig); ok {
		e := v.(*cacheEntry[V])
		if e.shape == sh {
			c.hits.Add(1)
			return e.value, nil
		}
		c.collisions.Add(1)
		return compile()
	}
	c.misses.Add(1)

	key := fmt.Sprintf("%d|%p|%p|%s|%s", sig.kind, sig.Target, sig.Sink, sig.Scope, sh)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.entries.Load(sig); ok {
			return v, nil
		}
		val, err := compile()
		if err != nil {
			return nil, err
		}
		c.compiles.Add(1)
		actual, loaded := c.entries.LoadOrStore(sig, &cacheEntry[V]{shape: sh, value: val})
		if !loaded {
			c.size.Add(1)
		}
		return actual, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	e := v.(*cacheEntry[V])
	if e.shape != sh {
		c.collisions.Add(1)
		return compile()
	}
	return e.value, nil
}

// Len returns the number of published entries.
func (c *Cache[V]) Len() int { return int(c.size.Load()) }

// Stats returns the cache counters.
func (c *Cache[V]) Stats() CacheStats {
	return CacheStats{
		Entries:    c.size.Load(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Compiles:   c.compiles.Load(),
		Collisions: c.collisions.Load(),
	}
}
