package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline Prometheus metrics.
var (
	DocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medextract",
			Name:      "documents_total",
			Help:      "Documents processed, by outcome",
		},
		[]string{"outcome"}, // "structured" / "degraded" / "failed"
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medextract",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	PagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "medextract",
			Name:      "pages_total",
			Help:      "Pages rasterized and recognized",
		},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medextract",
			Name:      "llm_requests_total",
			Help:      "Total number of classification requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medextract",
			Name:      "llm_request_duration_seconds",
			Help:      "Classification request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medextract",
			Name:      "llm_tokens_total",
			Help:      "Total tokens consumed by classification",
		},
		[]string{"provider", "model", "type"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "medextract",
			Name:      "queue_depth",
			Help:      "Documents waiting for a worker",
		},
	)
)

var registerOnce sync.Once

// RegisterPipelineMetrics registers the pipeline collectors with the default
// registry. Safe to call more than once.
func RegisterPipelineMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DocumentsTotal,
			StageDuration,
			PagesTotal,
			LLMRequestsTotal,
			LLMRequestDuration,
			LLMTokensTotal,
			QueueDepth,
		)
	})
}
