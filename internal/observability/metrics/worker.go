package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	stageFailures   *prometheus.CounterVec
	candidates      prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pilltong",
			Subsystem: "worker",
			Name:      "request_process_total",
			Help:      "Total processed identification requests by status.",
		},
		[]string{"service", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pilltong",
			Subsystem: "worker",
			Name:      "request_process_duration_seconds",
			Help:      "Identification request duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pilltong",
			Subsystem: "worker",
			Name:      "request_process_in_flight",
			Help:      "Number of in-flight identification requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pilltong",
			Subsystem: "worker",
			Name:      "stage_failures_total",
			Help:      "Absorbed per-unit pipeline failures by stage.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"stage"},
	)
	candidates := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pilltong",
			Subsystem: "worker",
			Name:      "published_candidates",
			Help:      "Candidate records per published result set.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(requestTotal, requestDuration, requestInFlight, stageFailures, candidates)

	return &WorkerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		stageFailures:   stageFailures,
		candidates:      candidates,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRequest() {
	m.requestInFlight.Inc()
}

func (m *WorkerMetrics) FinishRequest(service string, duration time.Duration, err error) {
	m.requestInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.requestTotal.WithLabelValues(service, status).Inc()
	m.requestDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveCandidates(count int) {
	m.candidates.Observe(float64(count))
}

// StageFailure satisfies the pipeline's stage observer.
func (m *WorkerMetrics) StageFailure(stage string) {
	m.stageFailures.WithLabelValues(stage).Inc()
}
