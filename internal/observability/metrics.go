package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// calibration pipeline.
type Metrics struct {
	ObservationsExtracted prometheus.Counter
	CellsMasked           prometheus.Counter
	CalibrationsComputed  prometheus.Counter
	CalibrationErrors     prometheus.Counter
	PipelineRunning       prometheus.Gauge

	// Stage timing.
	StageDuration *prometheus.HistogramVec // label: stage

	// Catalog client metrics.
	CatalogRequests    *prometheus.CounterVec   // labels: query={boundaries,granules}, outcome={success,error,empty}
	CatalogCache       *prometheus.CounterVec   // labels: query={boundaries,granules}, result={hit,miss}
	CatalogAPIDuration *prometheus.HistogramVec // label: query
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ObservationsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airtemp",
			Name:      "observations_extracted_total",
			Help:      "Total LST observations extracted, quality-filtered, and clipped.",
		}),
		CellsMasked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airtemp",
			Name:      "cells_masked_total",
			Help:      "Total raster cells removed by quality filtering.",
		}),
		CalibrationsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airtemp",
			Name:      "calibrations_computed_total",
			Help:      "Total per-observation calibration blends computed.",
		}),
		CalibrationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airtemp",
			Name:      "calibration_errors_total",
			Help:      "Total calibration failures, including missing date matches.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "airtemp",
			Name:      "pipeline_running",
			Help:      "1 while the run is active, 0 when finished.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "airtemp",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airtemp",
			Name:      "catalog_requests_total",
			Help:      "Catalog API requests by query kind and outcome.",
		}, []string{"query", "outcome"}),
		CatalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airtemp",
			Name:      "catalog_cache_total",
			Help:      "Catalog cache lookups by query kind and result.",
		}, []string{"query", "result"}),
		CatalogAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "airtemp",
			Name:      "catalog_api_duration_seconds",
			Help:      "Catalog API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"query"}),
	}

	prometheus.MustRegister(
		m.ObservationsExtracted,
		m.CellsMasked,
		m.CalibrationsComputed,
		m.CalibrationErrors,
		m.PipelineRunning,
		m.StageDuration,
		m.CatalogRequests,
		m.CatalogCache,
		m.CatalogAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ObservationsExtracted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "airtemp", Name: "observations_extracted_total"}),
		CellsMasked:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "airtemp", Name: "cells_masked_total"}),
		CalibrationsComputed:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "airtemp", Name: "calibrations_computed_total"}),
		CalibrationErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "airtemp", Name: "calibration_errors_total"}),
		PipelineRunning:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "airtemp", Name: "pipeline_running"}),
		StageDuration:         prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "airtemp", Name: "stage_duration_seconds"}, []string{"stage"}),
		CatalogRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "airtemp", Name: "catalog_requests_total"}, []string{"query", "outcome"}),
		CatalogCache:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "airtemp", Name: "catalog_cache_total"}, []string{"query", "result"}),
		CatalogAPIDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "airtemp", Name: "catalog_api_duration_seconds"}, []string{"query"}),
	}
}
