package metrics

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-mizu/xmap"
)

type fixedStats xmap.Stats

func (s fixedStats) Stats() xmap.Stats { return xmap.Stats(s) }

func TestCollector(t *testing.T) {
	c := NewCollector("app", fixedStats{
		Rows:  xmap.CacheStats{Entries: 2, Hits: 7, Misses: 2, Compiles: 2},
		Binds: xmap.CacheStats{Entries: 1, Hits: 3, Misses: 2, Compiles: 1, Collisions: 1},
	})
	assert.Equal(t, 10, testutil.CollectAndCount(c))

	expected := `
# HELP app_xmap_plan_cache_hits_total Lookups served by a cached plan.
# TYPE app_xmap_plan_cache_hits_total counter
app_xmap_plan_cache_hits_total{cache="binds"} 3
app_xmap_plan_cache_hits_total{cache="rows"} 7
# HELP app_xmap_plan_cache_collisions_total Signature hash collisions detected on lookup.
# TYPE app_xmap_plan_cache_collisions_total counter
app_xmap_plan_cache_collisions_total{cache="binds"} 1
app_xmap_plan_cache_collisions_total{cache="rows"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"app_xmap_plan_cache_hits_total", "app_xmap_plan_cache_collisions_total"))
}

func TestCollectorMapper(t *testing.T) {
	type row struct{ Id int64 }
	m := xmap.NewMapper()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector("", m)))

	for i := 0; i < 3; i++ {
		_, err := xmap.Collect[row](context.Background(), m,
			xmap.NewSliceSource([]string{"Id"}, [][]any{{int64(i)}}))
		require.NoError(t, err)
	}

	expected := `
# HELP xmap_plan_cache_entries Compiled plans held in the cache.
# TYPE xmap_plan_cache_entries gauge
xmap_plan_cache_entries{cache="binds"} 0
xmap_plan_cache_entries{cache="rows"} 1
# HELP xmap_plan_cache_compiles_total Plans compiled successfully.
# TYPE xmap_plan_cache_compiles_total counter
xmap_plan_cache_compiles_total{cache="binds"} 0
xmap_plan_cache_compiles_total{cache="rows"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"xmap_plan_cache_entries", "xmap_plan_cache_compiles_total"))
}
