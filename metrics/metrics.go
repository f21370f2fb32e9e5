// Package metrics exports xmap plan cache counters to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector("app", m))
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-mizu/xmap"
)

// StatsSource is implemented by *xmap.Mapper.
type StatsSource interface {
	Stats() xmap.Stats
}

// Collector reads the cache counters of a StatsSource on every scrape. Each
// series carries a cache label, "rows" or "binds".
type Collector struct {
	src StatsSource

	entries    *prometheus.Desc
	hits       *prometheus.Desc
	misses     *prometheus.Desc
	compiles   *prometheus.Desc
	collisions *prometheus.Desc
}

// NewCollector returns a collector for src. namespace may be empty.
func NewCollector(namespace string, src StatsSource) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "xmap_plan_cache", name),
			help, []string{"cache"}, nil,
		)
	}
	return &Collector{
		src:        src,
		entries:    desc("entries", "Compiled plans held in the cache."),
		hits:       desc("hits_total", "Lookups served by a cached plan."),
		misses:     desc("misses_total", "Lookups that found no cached plan."),
		compiles:   desc("compiles_total", "Plans compiled successfully."),
		collisions: desc("collisions_total", "Signature hash collisions detected on lookup."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.hits
	ch <- c.misses
	ch <- c.compiles
	ch <- c.collisions
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	c.collect(ch, "rows", s.Rows)
	c.collect(ch, "binds", s.Binds)
}

func (c *Collector) collect(ch chan<- prometheus.Metric, cache string, s xmap.CacheStats) {
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries), cache)
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), cache)
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), cache)
	ch <- prometheus.MustNewConstMetric(c.compiles, prometheus.CounterValue, float64(s.Compiles), cache)
	ch <- prometheus.MustNewConstMetric(c.collisions, prometheus.CounterValue, float64(s.Collisions), cache)
}
