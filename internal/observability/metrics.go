package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce     sync.Once
	requestsTotal    *prometheus.CounterVec
	latencySeconds   *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	gradingOutcomes  *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradelab_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradelab_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradelab_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradelab_pipeline_outcomes_total",
			Help: "Terminal outcomes of pipeline invocations.",
		}, []string{"pipeline", "outcome"})

		pipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradelab_pipeline_duration_seconds",
			Help:    "End-to-end duration of pipeline invocations.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"pipeline"})

		prometheus.MustRegister(requestsTotal, latencySeconds, errorsTotal, gradingOutcomes, pipelineDuration)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// PipelineOutcomes exposes the counter for pipeline terminal outcomes.
func PipelineOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingOutcomes
}

// PipelineDuration exposes the pipeline duration histogram.
func PipelineDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return pipelineDuration
}
