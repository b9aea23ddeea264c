package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports cache counters to prometheus
type Metrics struct {
	requests *prometheus.CounterVec
	size     *prometheus.GaugeVec
}

// NewMetrics creates cache collectors and registers them on reg.
// A nil registerer leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ahlab_cache_requests_total",
				Help: "Cache lookups by table and result (hit or miss)",
			},
			[]string{"table", "result"},
		),
		size: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ahlab_cache_entries",
				Help: "Number of entries held by each cache table",
			},
			[]string{"table"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.size)
	}
	return m
}

func (m *Metrics) observe(table string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.requests.WithLabelValues(table, result).Inc()
}

func (m *Metrics) entries(table string, n int) {
	m.size.WithLabelValues(table).Set(float64(n))
}

func (m *Metrics) reset() {
	m.requests.Reset()
	m.size.Reset()
}
