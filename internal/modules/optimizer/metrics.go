package optimizer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports run progress to prometheus
type Metrics struct {
	generation  prometheus.Gauge
	bestFitness prometheus.Gauge
	running     prometheus.Gauge
	discovered  prometheus.Counter
	repairs     prometheus.Counter
	evaluations prometheus.Counter
}

// NewMetrics registers the optimizer collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ahlab_optimizer_generation",
			Help: "Generation currently being evaluated",
		}),
		bestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ahlab_optimizer_best_fitness",
			Help: "Best fitness seen in the current run",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ahlab_optimizer_running",
			Help: "1 while an optimizer run is active",
		}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ahlab_optimizer_discovered_total",
			Help: "Strategies that met the discovery thresholds",
		}),
		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ahlab_optimizer_repairs_total",
			Help: "Genomes repaired to restore the side/size invariant",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ahlab_optimizer_evaluations_total",
			Help: "Genome fitness evaluations",
		}),
	}
	reg.MustRegister(m.generation, m.bestFitness, m.running, m.discovered, m.repairs, m.evaluations)
	return m
}
