package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	_metricRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Subsystem: "server",
		Name:      "requests_total",
		Help:      "The total number of requests by status and cache outcome",
	}, []string{"status", "cache"})

	_metricActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "courier",
		Subsystem: "server",
		Name:      "active_connections",
		Help:      "Connections currently being served",
	})

	_metricClientAborts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "courier",
		Subsystem: "server",
		Name:      "client_aborts_total",
		Help:      "Relays cut short by the client closing mid-stream",
	})

	_metricUpstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Subsystem: "upstream",
		Name:      "errors_total",
		Help:      "Origin failures by stage",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(
		_metricRequestsTotal,
		_metricActiveConnections,
		_metricClientAborts,
		_metricUpstreamErrors,
	)
}
