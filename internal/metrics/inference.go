// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InferenceMetrics tracks predictor calls and analysis outcomes.
type InferenceMetrics struct {
	registry *prometheus.Registry

	inferenceDuration *prometheus.HistogramVec
	inferenceInFlight prometheus.Gauge
	inferenceQueued   prometheus.Gauge
	queueRejections   prometheus.Counter
	analysesTotal     *prometheus.CounterVec
}

// NewInferenceMetrics creates and registers the inference collectors.
func NewInferenceMetrics(registry *prometheus.Registry) (*InferenceMetrics, error) {
	m := &InferenceMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *InferenceMetrics) initMetrics() {
	m.inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leafcheck_inference_duration_seconds",
			Help:    "Time spent running the predictor",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7m
		},
		[]string{"result"}, // result: ok, process_error, timeout, canceled
	)
	m.inferenceInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leafcheck_inference_in_flight",
		Help: "Predictor calls currently running",
	})
	m.inferenceQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leafcheck_inference_queued",
		Help: "Analyze calls waiting for a predictor slot",
	})
	m.queueRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leafcheck_inference_rejections_total",
		Help: "Analyze calls rejected because the predictor queue was full or waited too long",
	})
	m.analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafcheck_analyses_total",
			Help: "Classified analyses by outcome",
		},
		[]string{"outcome"},
	)
}

// Describe implements prometheus.Collector
func (m *InferenceMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.inferenceDuration.Describe(ch)
	m.inferenceInFlight.Describe(ch)
	m.inferenceQueued.Describe(ch)
	m.queueRejections.Describe(ch)
	m.analysesTotal.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *InferenceMetrics) Collect(ch chan<- prometheus.Metric) {
	m.inferenceDuration.Collect(ch)
	m.inferenceInFlight.Collect(ch)
	m.inferenceQueued.Collect(ch)
	m.queueRejections.Collect(ch)
	m.analysesTotal.Collect(ch)
}

// ObserveInference records one finished predictor call. Safe on a nil receiver.
func (m *InferenceMetrics) ObserveInference(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.inferenceDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *InferenceMetrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.inferenceInFlight.Add(delta)
}

func (m *InferenceMetrics) Queued(delta float64) {
	if m == nil {
		return
	}
	m.inferenceQueued.Add(delta)
}

func (m *InferenceMetrics) Rejected() {
	if m == nil {
		return
	}
	m.queueRejections.Inc()
}

func (m *InferenceMetrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(outcome).Inc()
}
