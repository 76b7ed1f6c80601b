// Package metrics exposes Prometheus collectors for the dispatch pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for mailburst
type Metrics struct {
	ItemsSentTotal    prometheus.Counter
	ItemsFailedTotal  *prometheus.CounterVec
	ItemsSkippedTotal prometheus.Counter
	SweepsTotal       prometheus.Counter
	SweepDueItems     prometheus.Gauge
	SweepDuration     prometheus.Histogram
	CampaignsCreated  prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ItemsSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailburst_items_sent_total",
			Help: "Total number of queue items delivered successfully",
		}),
		ItemsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailburst_items_failed_total",
				Help: "Total number of queue items marked failed",
			},
			[]string{"reason"},
		),
		ItemsSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailburst_items_skipped_total",
			Help: "Total number of due items left scheduled (claimed elsewhere or sweep cancelled)",
		}),
		SweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailburst_sweeps_total",
			Help: "Total number of dispatch sweeps executed",
		}),
		SweepDueItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mailburst_sweep_due_items",
			Help: "Number of due items found by the most recent sweep",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailburst_sweep_duration_seconds",
			Help:    "Duration of dispatch sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		CampaignsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailburst_campaigns_created_total",
			Help: "Total number of campaigns created",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.ItemsSentTotal,
		m.ItemsFailedTotal,
		m.ItemsSkippedTotal,
		m.SweepsTotal,
		m.SweepDueItems,
		m.SweepDuration,
		m.CampaignsCreated,
	)

	return m
}

// Handler returns an HTTP handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Failure reason labels for ItemsFailedTotal
const (
	ReasonProvider = "provider"
	ReasonTimeout  = "timeout"
	ReasonMissing  = "campaign_missing"
)
