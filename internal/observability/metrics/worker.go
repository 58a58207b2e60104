package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/docflow/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	stepTotal        *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	stepInFlight     prometheus.Gauge
	stageTotal       *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	transitionsTotal *prometheus.CounterVec
	versionConflicts prometheus.Counter
	queueLag         *prometheus.HistogramVec
	breakerOpen      *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	stepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflow",
			Subsystem: "worker",
			Name:      "step_total",
			Help:      "Total driving-loop steps by result.",
		},
		[]string{"service", "status"},
	)
	stepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docflow",
			Subsystem: "worker",
			Name:      "step_duration_seconds",
			Help:      "Driving-loop step duration in seconds by result.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	stepInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docflow",
			Subsystem:   "worker",
			Name:        "step_in_flight",
			Help:        "Number of in-flight driving-loop steps.",
			ConstLabels: serviceLabel,
		},
	)
	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflow",
			Subsystem: "worker",
			Name:      "stage_executions_total",
			Help:      "Stage executions by stage and signal.",
		},
		[]string{"service", "stage", "signal"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docflow",
			Subsystem: "worker",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "stage"},
	)
	transitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflow",
			Subsystem: "worker",
			Name:      "transitions_total",
			Help:      "Persisted status transitions by target status.",
		},
		[]string{"service", "status"},
	)
	versionConflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "docflow",
			Subsystem:   "worker",
			Name:        "version_conflicts_total",
			Help:        "Optimistic version conflicts that forced a step replay.",
			ConstLabels: serviceLabel,
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docflow",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between the last state update and the step picking it up.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docflow",
			Subsystem: "dependency",
			Name:      "circuit_open",
			Help:      "1 while the circuit breaker of an external call is open.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(stepTotal, stepDuration, stepInFlight, stageTotal, stageDuration, transitionsTotal, versionConflicts, queueLag, breakerOpen)

	return &WorkerMetrics{
		registry:         registry,
		service:          service,
		stepTotal:        stepTotal,
		stepDuration:     stepDuration,
		stepInFlight:     stepInFlight,
		stageTotal:       stageTotal,
		stageDuration:    stageDuration,
		transitionsTotal: transitionsTotal,
		versionConflicts: versionConflicts,
		queueLag:         queueLag,
		breakerOpen:      breakerOpen,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartStep() {
	m.stepInFlight.Inc()
}

func (m *WorkerMetrics) FinishStep(duration time.Duration, err error) {
	m.stepInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.stepTotal.WithLabelValues(m.service, status).Inc()
	m.stepDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveStage(stage domain.Stage, signal domain.Signal, duration time.Duration) {
	m.stageTotal.WithLabelValues(m.service, string(stage), string(signal)).Inc()
	m.stageDuration.WithLabelValues(m.service, string(stage)).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveTransition(status domain.DocumentStatus) {
	m.transitionsTotal.WithLabelValues(m.service, string(status)).Inc()
}

func (m *WorkerMetrics) ObserveVersionConflict() {
	m.versionConflicts.Inc()
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveBreaker(operation string, open bool) {
	value := 0.0
	if open {
		value = 1
	}
	m.breakerOpen.WithLabelValues(m.service, operation).Set(value)
}
