// Package metrics exposes Prometheus counters for crawl runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fetch kinds used as the "kind" label.
const (
	KindSeed    = "seed"
	KindArticle = "article"
)

// Metrics groups the collectors updated by a crawl. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	FetchesTotal     *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	LinksCollected   prometheus.Counter
	ArticlesTotal    *prometheus.CounterVec
	TagsCountedTotal prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscorpus_fetches_total",
				Help: "Total number of page fetches.",
			},
			[]string{"kind", "status"}, // status: ok, error
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newscorpus_fetch_duration_seconds",
				Help:    "Duration of page fetches.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		LinksCollected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "newscorpus_links_collected_total",
				Help: "Total number of article links admitted by the collector.",
			},
		),
		ArticlesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscorpus_articles_total",
				Help: "Total number of articles processed.",
			},
			[]string{"outcome"}, // outcome: saved, failed
		),
		TagsCountedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "newscorpus_pos_tags_counted_total",
				Help: "Total number of POS tags counted.",
			},
		),
	}

	reg.MustRegister(m.FetchesTotal, m.FetchDuration, m.LinksCollected, m.ArticlesTotal, m.TagsCountedTotal)
	return m
}

// ObserveFetch records one fetch of the given kind.
func (m *Metrics) ObserveFetch(kind string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.FetchesTotal.WithLabelValues(kind, status).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(seconds)
}

// LinkAdmitted records one link accepted by the collector.
func (m *Metrics) LinkAdmitted() {
	if m == nil {
		return
	}
	m.LinksCollected.Inc()
}

// ArticleSaved records one persisted article.
func (m *Metrics) ArticleSaved() {
	if m == nil {
		return
	}
	m.ArticlesTotal.WithLabelValues("saved").Inc()
}

// ArticleFailed records one article that could not be extracted or saved.
func (m *Metrics) ArticleFailed() {
	if m == nil {
		return
	}
	m.ArticlesTotal.WithLabelValues("failed").Inc()
}

// TagsCounted records n POS tags counted for one article.
func (m *Metrics) TagsCounted(n int) {
	if m == nil {
		return
	}
	m.TagsCountedTotal.Add(float64(n))
}
