// Package metrics provides Prometheus metrics for the evaluation
// pipeline: run counters and latency, publish-gate guardrail events,
// queue and worker health, and HTTP request accounting.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metric namespace.
const defaultNamespace = "vitalis"

// Manager owns the Prometheus collectors for the service.
type Manager struct {
	namespace string
	registry  prometheus.Registerer
	gatherer  prometheus.Gatherer

	evaluations        prometheus.Counter
	evaluationFailures prometheus.Counter
	evaluationLatency  prometheus.Histogram

	publishes        prometheus.Counter
	carryForwards    *prometheus.CounterVec
	shockCaps        prometheus.Counter
	versionResets    prometheus.Counter
	constraintCaps   *prometheus.CounterVec
	publishConflicts prometheus.Counter

	baselineUpdates prometheus.Counter
	outliersFlagged prometheus.Counter

	queueSize  prometheus.Gauge
	queueDrops *prometheus.CounterVec

	workerCount prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry overrides the Prometheus registry used for both
// registration and gathering.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
			m.gatherer = r
		}
	}
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: defaultNamespace,
		registry:  prometheus.DefaultRegisterer,
		gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.evaluations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "evaluations_total",
		Help: "Completed evaluation runs.",
	})
	m.evaluationFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "evaluation_failures_total",
		Help: "Evaluation runs that surfaced an error.",
	})
	m.evaluationLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "evaluation_duration_seconds",
		Help:    "Wall time of one evaluation run.",
		Buckets: prometheus.DefBuckets,
	})

	m.publishes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "publishes_total",
		Help: "Published velocity updates.",
	})
	m.carryForwards = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "carry_forwards_total",
		Help: "Publish-gate carry-forwards by reason.",
	}, []string{"reason"})
	m.shockCaps = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "shock_caps_total",
		Help: "Publishes where the daily movement was shock capped.",
	})
	m.versionResets = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "version_resets_total",
		Help: "Publishes forced by a pipeline version change.",
	})
	m.constraintCaps = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "constraint_caps_total",
		Help: "Velocity results capped at neutral by a sustained-evidence gate.",
	}, []string{"gate"})
	m.publishConflicts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "publish_conflicts_total",
		Help: "Optimistic-concurrency conflicts writing published state.",
	})

	m.baselineUpdates = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "baseline_updates_total",
		Help: "Personal baseline posterior updates.",
	})
	m.outliersFlagged = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "baseline_outliers_total",
		Help: "Lab observations flagged as outliers (still incorporated).",
	})

	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "trigger_queue_size",
		Help: "Triggers currently queued.",
	})
	m.queueDrops = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "trigger_queue_drops_total",
		Help: "Triggers rejected by the queue, by reason.",
	}, []string{"reason"})

	m.workerCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "worker_count",
		Help: "Evaluation workers running.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "http_requests_total",
		Help: "HTTP requests by endpoint and status.",
	}, []string{"endpoint", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "http_request_duration_seconds",
		Help:    "HTTP request latency by endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	return m
}

var (
	defaultManager *Manager
	initOnce       sync.Once
)

func manager() *Manager {
	initOnce.Do(func() {
		if defaultManager == nil {
			defaultManager = NewManager()
		}
	})
	return defaultManager
}

// SetDefault installs a Manager as the package-level default. Must be
// called before any Record/Update helper to take effect.
func SetDefault(m *Manager) {
	defaultManager = m
}

// Gatherer exposes the default manager's registry for scrape handlers.
func Gatherer() prometheus.Gatherer {
	return manager().gatherer
}

// Package-level helpers against the default manager.

func RecordEvaluation()                   { manager().evaluations.Inc() }
func RecordEvaluationFailure()            { manager().evaluationFailures.Inc() }
func RecordEvaluationLatency(sec float64) { manager().evaluationLatency.Observe(sec) }

func RecordPublish()                   { manager().publishes.Inc() }
func RecordCarryForward(reason string) { manager().carryForwards.WithLabelValues(reason).Inc() }
func RecordShockCap()                  { manager().shockCaps.Inc() }
func RecordVersionReset()              { manager().versionResets.Inc() }
func RecordConstraintCap(gate string)  { manager().constraintCaps.WithLabelValues(gate).Inc() }
func RecordPublishConflict()           { manager().publishConflicts.Inc() }

func RecordBaselineUpdate() { manager().baselineUpdates.Inc() }
func RecordOutlierFlag()    { manager().outliersFlagged.Inc() }

func UpdateQueueSize(n int)         { manager().queueSize.Set(float64(n)) }
func RecordQueueDrop(reason string) { manager().queueDrops.WithLabelValues(reason).Inc() }
func UpdateWorkerCount(n int)       { manager().workerCount.Set(float64(n)) }

func RecordHTTPRequest(endpoint, status string) {
	manager().httpRequests.WithLabelValues(endpoint, status).Inc()
}

func ObserveHTTPDuration(endpoint string, sec float64) {
	manager().httpRequestDuration.WithLabelValues(endpoint).Observe(sec)
}
