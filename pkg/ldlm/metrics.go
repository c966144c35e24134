package ldlm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label constants for metrics.
const (
	LabelNamespace = "namespace"
	LabelMode      = "mode"
	LabelStatus    = "status"
	LabelPolicy    = "policy"
	LabelReason    = "reason"
)

// Status label values for enqueue/cancel outcomes.
const (
	StatusLabelOK      = "ok"
	StatusLabelError   = "error"
	StatusLabelTimeout = "timeout"
)

// Metrics provides Prometheus metrics for the engine: counters for
// operations, gauges for live state, histograms for wait latency.
type Metrics struct {
	enqueueTotal     *prometheus.CounterVec
	completionWait   *prometheus.HistogramVec
	cancelTotal      *prometheus.CounterVec
	lruEvictedTotal  *prometheus.CounterVec
	replayTotal      *prometheus.CounterVec
	unusedGauge      *prometheus.GaugeVec
	poolSLVGauge     *prometheus.GaugeVec
	poolLimitGauge   *prometheus.GaugeVec
}

// NewMetrics creates and registers engine metrics. If registry is nil,
// metrics are created but not registered, useful for tests.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		enqueueTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ldlm",
				Subsystem: "enqueue",
				Name:      "total",
				Help:      "Total number of enqueue attempts",
			},
			[]string{LabelNamespace, LabelMode, LabelStatus},
		),
		completionWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ldlm",
				Subsystem: "enqueue",
				Name:      "completion_wait_seconds",
				Help:      "Time spent parked waiting for a completion notification",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{LabelNamespace},
		),
		cancelTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ldlm",
				Subsystem: "cancel",
				Name:      "total",
				Help:      "Total number of cancel operations",
			},
			[]string{LabelNamespace, LabelStatus},
		),
		lruEvictedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ldlm",
				Subsystem: "lru",
				Name:      "evicted_total",
				Help:      "Total number of locks evicted by the LRU policy engine",
			},
			[]string{LabelNamespace, LabelPolicy},
		),
		replayTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ldlm",
				Subsystem: "replay",
				Name:      "total",
				Help:      "Total number of locks replayed after reconnect",
			},
			[]string{LabelNamespace, LabelStatus},
		),
		unusedGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ldlm",
				Subsystem: "lru",
				Name:      "unused",
				Help:      "Number of locks currently on the unused LRU list",
			},
			[]string{LabelNamespace},
		),
		poolSLVGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ldlm",
				Subsystem: "pool",
				Name:      "slv",
				Help:      "Current server-lock-volume feedback value",
			},
			[]string{LabelNamespace},
		),
		poolLimitGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ldlm",
				Subsystem: "pool",
				Name:      "limit",
				Help:      "Current server-pool limit feedback value",
			},
			[]string{LabelNamespace},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.enqueueTotal, m.completionWait, m.cancelTotal,
			m.lruEvictedTotal, m.replayTotal, m.unusedGauge,
			m.poolSLVGauge, m.poolLimitGauge,
		)
	}

	return m
}

// ObserveEnqueue records an enqueue outcome.
func (m *Metrics) ObserveEnqueue(ns string, mode Mode, status string) {
	if m == nil {
		return
	}
	m.enqueueTotal.WithLabelValues(ns, mode.String(), status).Inc()
}

// ObserveCompletionWait records a completion-wait duration in seconds.
func (m *Metrics) ObserveCompletionWait(ns string, seconds float64) {
	if m == nil {
		return
	}
	m.completionWait.WithLabelValues(ns).Observe(seconds)
}

// ObserveCancel records a cancel outcome.
func (m *Metrics) ObserveCancel(ns string, status string) {
	if m == nil {
		return
	}
	m.cancelTotal.WithLabelValues(ns, status).Inc()
}

// ObserveLRUEvicted records n locks evicted under the named policy.
func (m *Metrics) ObserveLRUEvicted(ns string, policy string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.lruEvictedTotal.WithLabelValues(ns, policy).Add(float64(n))
}

// ObserveReplay records a replay outcome.
func (m *Metrics) ObserveReplay(ns string, status string) {
	if m == nil {
		return
	}
	m.replayTotal.WithLabelValues(ns, status).Inc()
}

// SetUnused sets the unused-LRU gauge for a namespace.
func (m *Metrics) SetUnused(ns string, n int) {
	if m == nil {
		return
	}
	m.unusedGauge.WithLabelValues(ns).Set(float64(n))
}

// SetPool sets the SLV/limit gauges for a namespace.
func (m *Metrics) SetPool(ns string, slv uint64, limit uint32) {
	if m == nil {
		return
	}
	m.poolSLVGauge.WithLabelValues(ns).Set(float64(slv))
	m.poolLimitGauge.WithLabelValues(ns).Set(float64(limit))
}
