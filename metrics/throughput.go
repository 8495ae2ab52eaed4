package metrics

import (
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/prometheus/client_golang/prometheus"
)

var relayRate = ratecounter.NewRateCounter(time.Second)

var _metricRelayBytesPerSecond = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
	Namespace: "courier",
	Subsystem: "server",
	Name:      "relay_bytes_per_second",
	Help:      "Instantaneous client-bound throughput",
}, func() float64 {
	return float64(relayRate.Rate())
})

func init() {
	prometheus.MustRegister(_metricRelayBytesPerSecond)
}

// CountRelayBytes feeds the throughput window.
func CountRelayBytes(n int64) {
	relayRate.Incr(n)
}
