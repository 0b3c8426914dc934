package engine

import "github.com/prometheus/client_golang/prometheus"

// metrics are the engine's Prometheus instrumentation, registered once
// per process the same way middleware.PrometheusMiddleware registers
// its HTTP metrics.
type metrics struct {
	tickDuration    prometheus.Histogram
	voxelsProcessed prometheus.Counter
	activeBlocks    prometheus.Gauge
	activeComponents prometheus.Gauge
	settleQueueDepth prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fluidsim",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one simulation tick.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		voxelsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fluidsim",
			Name:      "voxels_processed_total",
			Help:      "Voxels handed to the component manager as newly settled fluid.",
		}),
		activeBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fluidsim",
			Name:      "active_blocks",
			Help:      "Blocks with at least one unsettled chunk this tick.",
		}),
		activeComponents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fluidsim",
			Name:      "active_components",
			Help:      "Tracked fluid components.",
		}),
		settleQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fluidsim",
			Name:      "settle_intake_depth",
			Help:      "Voxels queued in the component manager's intake set.",
		}),
	}
	prometheus.MustRegister(m.tickDuration, m.voxelsProcessed, m.activeBlocks, m.activeComponents, m.settleQueueDepth)
	return m
}
