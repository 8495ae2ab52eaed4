package storage

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	_metricCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "The total number of cache lookups by result",
	}, []string{"result"})

	_metricCacheStores = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Subsystem: "cache",
		Name:      "stores_total",
		Help:      "The total number of cache store attempts by result",
	}, []string{"result"})

	_metricCacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "courier",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "The total number of entries evicted by budget pressure",
	})

	_metricCacheOrphanReclaims = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "courier",
		Subsystem: "cache",
		Name:      "orphan_reclaims_total",
		Help:      "Evicted-while-pinned entries reclaimed at last release",
	})

	_metricCacheUsedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "courier",
		Subsystem: "cache",
		Name:      "used_bytes",
		Help:      "Byte total of resident entries",
	})

	_metricCacheObjects = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "courier",
		Subsystem: "cache",
		Name:      "objects",
		Help:      "Resident entry count",
	})
)

func init() {
	prometheus.MustRegister(
		_metricCacheLookups,
		_metricCacheStores,
		_metricCacheEvictions,
		_metricCacheOrphanReclaims,
		_metricCacheUsedBytes,
		_metricCacheObjects,
	)
}
