// Package metrics holds the Prometheus collectors for the API and the detection pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	crops        *prometheus.CounterVec
	uploads      *prometheus.CounterVec
	pipelineRuns *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "container_tracker_http_requests_total",
		Help: "API requests by method, route and status code",
	}, []string{"method", "route", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "container_tracker_http_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	m.crops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "container_tracker_pipeline_crops_total",
		Help: "Crops passed through text recognition by class and whether text was found",
	}, []string{"class", "recognized"})
	m.uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "container_tracker_pipeline_uploads_total",
		Help: "Upload attempts by outcome",
	}, []string{"outcome"})
	m.pipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "container_tracker_pipeline_runs_total",
		Help: "Pipeline runs by result",
	}, []string{"result"})
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "container_tracker_pipeline_run_duration_seconds",
		Help:    "Wall time of a full detect, recognize and upload run",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	for _, c := range []prometheus.Collector{
		m.httpRequests, m.httpDuration, m.crops, m.uploads, m.pipelineRuns, m.runDuration,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveHTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) RecordCrop(class string, recognized bool) {
	if m == nil {
		return
	}
	label := "no"
	if recognized {
		label = "yes"
	}
	m.crops.WithLabelValues(class, label).Inc()
}

func (m *Metrics) RecordUpload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRun(result string, seconds float64) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(result).Inc()
	m.runDuration.Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
