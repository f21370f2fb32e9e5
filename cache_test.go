package xmap

import (
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCacheHitAndMiss(t *testing.T) {
	var c Cache[int]
	sig, sh := newRowSignature("s", reflect.TypeOf(person{}), []string{"Id", "Name"}, nil)

	calls := 0
	compile := func() (int, error) { calls++; return 7, nil }

	v, err := c.GetOrCompile(sig, sh, compile)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	v, err = c.GetOrCompile(sig, sh, compile)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, CacheStats{Entries: 1, Hits: 1, Misses: 1, Compiles: 1}, c.Stats())
}

func TestCacheDoesNotKeepErrors(t *testing.T) {
	var c Cache[int]
	sig, sh := newBindSignature("s", reflect.TypeOf(person{}), reflect.TypeOf(&Params{}), nil, 1)

	boom := errors.New("boom")
	_, err := c.GetOrCompile(sig, sh, func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := c.GetOrCompile(sig, sh, func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, int64(1), c.Stats().Compiles)
}

func TestCacheCollision(t *testing.T) {
	var c Cache[string]
	sig := Signature{Hash: 1}

	v, err := c.GetOrCompile(sig, "a", func() (string, error) { return "A", nil })
	require.NoError(t, err)
	assert.Equal(t, "A", v)

	v, err = c.GetOrCompile(sig, "b", func() (string, error) { return "B", nil })
	require.NoError(t, err)
	assert.Equal(t, "B", v, "a colliding shape gets its own routine")

	v, err = c.GetOrCompile(sig, "a", func() (string, error) { return "never", nil })
	require.NoError(t, err)
	assert.Equal(t, "A", v, "the published entry is kept")

	s := c.Stats()
	assert.Equal(t, int64(1), s.Collisions)
	assert.Equal(t, int64(1), s.Entries)
}

func TestCacheConcurrentCompileOnce(t *testing.T) {
	var c Cache[int]
	sig, sh := newRowSignature("s", reflect.TypeOf(person{}), []string{"Id"}, nil)

	var calls atomic.Int32
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			v, err := c.GetOrCompile(sig, sh, func() (int, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return 42, nil
			})
			if err != nil {
				return err
			}
			if v != 42 {
				return errors.New("wrong value")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), c.Stats().Compiles)
	assert.Equal(t, 1, c.Len())
}

func TestSignatureShape(t *testing.T) {
	target := reflect.TypeOf(person{})
	a, sa := newRowSignature("s", target, []string{"Id", "Name"}, nil)
	b, sb := newRowSignature("s", target, []string{"Name", "Id"}, nil)
	assert.NotEqual(t, a, b, "column order is part of the shape")
	assert.NotEqual(t, sa, sb)

	typed, _ := newRowSignature("s", target, []string{"Id", "Name"},
		[]reflect.Type{reflect.TypeOf(int64(0)), reflect.TypeOf("")})
	assert.NotEqual(t, a, typed, "column types are part of the shape")

	other, _ := newRowSignature("t", target, []string{"Id", "Name"}, nil)
	assert.NotEqual(t, a, other, "scopes never share entries")

	again, _ := newRowSignature("s", target, []string{"Id", "Name"}, nil)
	assert.Equal(t, a, again)

	b1, _ := newBindSignature("s", target, reflect.TypeOf(&Params{}), nil, 1)
	b2, _ := newBindSignature("s", target, reflect.TypeOf(&Params{}), nil, 2)
	assert.NotEqual(t, b1, b2, "batch size is part of the shape")
}
