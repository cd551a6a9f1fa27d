// Package metrics exposes prometheus instrumentation for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	ItemsRewritten   prometheus.Counter
	ItemsSkipped     *prometheus.CounterVec
	FeedFetches      *prometheus.CounterVec
	ProviderAttempts *prometheus.CounterVec
	ShortenFallbacks prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feedrewrite_runs_total",
			Help: "Pipeline runs by outcome",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedrewrite_run_duration_seconds",
			Help:    "Wall time of a pipeline run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ItemsRewritten: f.NewCounter(prometheus.CounterOpts{
			Name: "feedrewrite_items_rewritten_total",
			Help: "Items rewritten and upserted",
		}),
		ItemsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feedrewrite_items_skipped_total",
			Help: "Items skipped by reason",
		}, []string{"reason"}),
		FeedFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feedrewrite_feed_fetches_total",
			Help: "Feed fetches by status",
		}, []string{"status"}),
		ProviderAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feedrewrite_provider_attempts_total",
			Help: "LLM provider attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		ShortenFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "feedrewrite_shorten_fallbacks_total",
			Help: "Links that fell back to the original URL",
		}),
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// ItemRewritten counts a successful rewrite.
func (m *Metrics) ItemRewritten() {
	if m == nil {
		return
	}
	m.ItemsRewritten.Inc()
}

// ItemSkipped counts a skipped item.
func (m *Metrics) ItemSkipped(reason string) {
	if m == nil {
		return
	}
	m.ItemsSkipped.WithLabelValues(reason).Inc()
}

// FeedFetched counts a feed fetch outcome ("ok" or "error").
func (m *Metrics) FeedFetched(status string) {
	if m == nil {
		return
	}
	m.FeedFetches.WithLabelValues(status).Inc()
}

// ProviderAttempt counts one call to an LLM provider.
func (m *Metrics) ProviderAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.ProviderAttempts.WithLabelValues(provider, outcome).Inc()
}

// ShortenFallback counts a shortener failure.
func (m *Metrics) ShortenFallback() {
	if m == nil {
		return
	}
	m.ShortenFallbacks.Inc()
}
