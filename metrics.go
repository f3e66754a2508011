package pubsite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics is per App so several apps (tests, embedders) can coexist in one process.
type metrics struct {
	registry *prometheus.Registry
	listings *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	listings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pubsite",
		Name:      "resolutions_total",
		Help:      "Listing and detail resolutions by kind and outcome.",
	}, []string{"kind", "outcome"})
	reg.MustRegister(listings)
	return &metrics{registry: reg, listings: listings}
}

func (m *metrics) observe(kind, outcome string) {
	if m == nil {
		return
	}
	m.listings.WithLabelValues(kind, outcome).Inc()
}
