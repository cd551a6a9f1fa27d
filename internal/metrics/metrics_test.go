package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun("ok", 2*time.Second)
	m.ItemRewritten()
	m.ItemRewritten()
	m.ItemSkipped("rewrite")
	m.FeedFetched("error")
	m.ProviderAttempt("groq", "error")
	m.ShortenFallback()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsRewritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsSkipped.WithLabelValues("rewrite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedFetches.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderAttempts.WithLabelValues("groq", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShortenFallbacks))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("failed", time.Second)
		m.ItemRewritten()
		m.ItemSkipped("fetch")
		m.FeedFetched("ok")
		m.ProviderAttempt("openai", "ok")
		m.ShortenFallback()
	})
}
