// Package metrics provides Prometheus metrics for the hazard scoring
// service and the training job, exposed on the service's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the scoring pipeline.
type Metrics struct {
	// Scoring metrics
	PredictionsTotal   prometheus.Counter   // Successful predictions served
	PredictionFailures prometheus.Counter   // Predictions that failed inside the model
	ValidationErrors   prometheus.Counter   // Requests rejected for malformed input
	UnreadyRequests    prometheus.Counter   // Requests refused because no model is loaded
	PredictionLatency  prometheus.Histogram // End-to-end scoring latency in seconds
	HazardScores       prometheus.Histogram // Distribution of served hazard probabilities

	// Model lifecycle metrics
	ModelLoaded prometheus.Gauge // 1 when a model is loaded, 0 otherwise
	ModelAge    prometheus.Gauge // Age of the loaded model in seconds

	// Catalog fetch metrics
	CatalogPages        prometheus.Counter // Catalog pages fetched
	ObservationsFetched prometheus.Counter // Labeled observations fetched from the catalog
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry, which keeps tests
// isolated from the global Prometheus state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of predictions that failed inside the model",
		}),
		ValidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_errors_total",
			Help: "Total number of requests rejected for malformed input",
		}),
		UnreadyRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "unready_requests_total",
			Help: "Total number of requests refused because no model is loaded",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end scoring latency in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-6, 10, 8),
		}),
		HazardScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hazard_probability",
			Help:    "Distribution of served hazard probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "Whether a model artifact is currently loaded (1) or not (0)",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		CatalogPages: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_pages_total",
			Help: "Total number of catalog pages fetched",
		}),
		ObservationsFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "observations_fetched_total",
			Help: "Total number of labeled observations fetched from the catalog",
		}),
	}
}
