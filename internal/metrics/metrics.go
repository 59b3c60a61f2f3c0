// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics tracks routing outcomes for observability. Counters are fed
// from the hooks event bus and exposed both as a JSON snapshot and in the
// Prometheus text format.
package metrics

import (
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/traylinx/bhasharouter/internal/hooks"
)

const namespace = "bhasharouter"

// Metrics tracks routing, dispatch and evaluation events.
type Metrics struct {
	// Counters track cumulative counts of events
	requests       atomic.Int64
	decisions      atomic.Int64
	clarifications atomic.Int64
	failures       atomic.Int64
	dispatchErrors atomic.Int64
	evaluations    atomic.Int64

	// Per-label breakdowns
	byMu          sync.RWMutex
	byHandler     map[string]int64
	byLanguage    map[string]int64
	byMethod      map[string]int64
	unavailableBy map[string]int64

	// Request latency in milliseconds, most recent maxSamples
	latencyMu      sync.RWMutex
	latencySamples []int64
	maxSamples     int

	lastAccuracy atomic.Uint64 // float64 bits
	startTime    time.Time

	registry       *prometheus.Registry
	promDecisions  *prometheus.CounterVec
	promConfidence *prometheus.HistogramVec
	promUnavail    *prometheus.CounterVec
	promFailures   prometheus.Counter
	promDispatch   *prometheus.CounterVec
	promLatency    *prometheus.HistogramVec
	promAccuracy   prometheus.Gauge
}

// New creates a Metrics instance with its own Prometheus registry.
// maxSamples bounds the latency samples kept for the snapshot.
func New(maxSamples int) *Metrics {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		byHandler:      make(map[string]int64),
		byLanguage:     make(map[string]int64),
		byMethod:       make(map[string]int64),
		unavailableBy:  make(map[string]int64),
		latencySamples: make([]int64, 0, maxSamples),
		maxSamples:     maxSamples,
		startTime:      time.Now(),
		registry:       reg,

		promDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "decisions_total",
			Help:      "Routing decisions by selected outcome, method and detected language",
		}, []string{"handler", "method", "language"}),
		promConfidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "confidence",
			Help:      "Confidence of routing decisions",
			Buckets:   []float64{-0.5, 0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}, []string{"method"}),
		promUnavail: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "capability_unavailable_total",
			Help:      "Scoring method failures that degraded a decision",
		}, []string{"method"}),
		promFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "failures_total",
			Help:      "Requests that no routing method could decide",
		}),
		promDispatch: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "failures_total",
			Help:      "Handler calls that returned an error",
		}, []string{"handler"}),
		promLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"path", "status"}),
		promAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "accuracy",
			Help:      "Overall accuracy of the most recent evaluation run",
		}),
	}
}

// Subscribe records every routing event published on bus.
func (m *Metrics) Subscribe(bus *hooks.EventBus) {
	for _, event := range hooks.AllEvents() {
		bus.Subscribe(event, m.Record)
	}
}

// Record updates the counters for one event.
func (m *Metrics) Record(ec *hooks.EventContext) {
	if ec == nil {
		return
	}
	switch ec.Event {
	case hooks.EventRequestReceived:
		m.requests.Add(1)
	case hooks.EventRoutingDecision, hooks.EventClarificationNeeded:
		m.decisions.Add(1)
		if ec.Event == hooks.EventClarificationNeeded {
			m.clarifications.Add(1)
		}
		m.byMu.Lock()
		m.byHandler[ec.Handler]++
		m.byLanguage[ec.Language]++
		m.byMethod[ec.Method]++
		m.byMu.Unlock()
		m.promDecisions.WithLabelValues(ec.Handler, ec.Method, ec.Language).Inc()
		m.promConfidence.WithLabelValues(ec.Method).Observe(ec.Confidence)
	case hooks.EventCapabilityUnavailable:
		m.byMu.Lock()
		m.unavailableBy[ec.Method]++
		m.byMu.Unlock()
		m.promUnavail.WithLabelValues(ec.Method).Inc()
	case hooks.EventRoutingFailed:
		m.failures.Add(1)
		m.promFailures.Inc()
	case hooks.EventDispatchFailed:
		m.dispatchErrors.Add(1)
		m.promDispatch.WithLabelValues(ec.Handler).Inc()
	case hooks.EventEvaluationCompleted:
		m.evaluations.Add(1)
		m.lastAccuracy.Store(math.Float64bits(ec.Confidence))
		m.promAccuracy.Set(ec.Confidence)
	}
}

// ObserveRequest records the latency of one API request.
func (m *Metrics) ObserveRequest(path string, status string, d time.Duration) {
	m.promLatency.WithLabelValues(path, status).Observe(d.Seconds())

	m.latencyMu.Lock()
	defer m.latencyMu.Unlock()
	m.latencySamples = append(m.latencySamples, d.Milliseconds())
	if len(m.latencySamples) > m.maxSamples {
		m.latencySamples = m.latencySamples[len(m.latencySamples)-m.maxSamples:]
	}
}

// Handler serves the Prometheus exposition of the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the Prometheus registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() *Snapshot {
	m.byMu.RLock()
	s := &Snapshot{
		ByHandler:     copyCounts(m.byHandler),
		ByLanguage:    copyCounts(m.byLanguage),
		ByMethod:      copyCounts(m.byMethod),
		UnavailableBy: copyCounts(m.unavailableBy),
	}
	m.byMu.RUnlock()

	m.latencyMu.RLock()
	s.LatencyStats = m.calculateLatencyStats()
	m.latencyMu.RUnlock()

	s.Requests = m.requests.Load()
	s.Decisions = m.decisions.Load()
	s.Clarifications = m.clarifications.Load()
	s.RoutingFailures = m.failures.Load()
	s.DispatchFailures = m.dispatchErrors.Load()
	s.Evaluations = m.evaluations.Load()
	s.LastAccuracy = math.Float64frombits(m.lastAccuracy.Load())
	s.UptimeSeconds = int64(time.Since(m.startTime).Seconds())
	s.Timestamp = time.Now()
	return s
}

// calculateLatencyStats must be called with latencyMu held.
func (m *Metrics) calculateLatencyStats() LatencyStats {
	if len(m.latencySamples) == 0 {
		return LatencyStats{}
	}
	var sum int64
	min := m.latencySamples[0]
	max := m.latencySamples[0]
	for _, sample := range m.latencySamples {
		sum += sample
		if sample < min {
			min = sample
		}
		if sample > max {
			max = sample
		}
	}
	return LatencyStats{
		AverageMs: sum / int64(len(m.latencySamples)),
		MinMs:     min,
		MaxMs:     max,
		Samples:   int64(len(m.latencySamples)),
	}
}

// Snapshot is a serializable view of Metrics.
type Snapshot struct {
	Requests         int64 `json:"requests"`
	Decisions        int64 `json:"decisions"`
	Clarifications   int64 `json:"clarifications"`
	RoutingFailures  int64 `json:"routing_failures"`
	DispatchFailures int64 `json:"dispatch_failures"`
	Evaluations      int64 `json:"evaluations"`

	ByHandler     map[string]int64 `json:"by_handler"`
	ByLanguage    map[string]int64 `json:"by_language"`
	ByMethod      map[string]int64 `json:"by_method"`
	UnavailableBy map[string]int64 `json:"unavailable_by_method"`

	LatencyStats LatencyStats `json:"latency_stats"`
	LastAccuracy float64      `json:"last_evaluation_accuracy"`

	UptimeSeconds int64     `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// LatencyStats summarizes recent API request latencies.
type LatencyStats struct {
	AverageMs int64 `json:"average_ms"`
	MinMs     int64 `json:"min_ms"`
	MaxMs     int64 `json:"max_ms"`
	Samples   int64 `json:"samples"`
}

// ClarificationRate is the share of decisions that needed clarification, 0-100.
func (s *Snapshot) ClarificationRate() float64 {
	if s.Decisions == 0 {
		return 0
	}
	return float64(s.Clarifications) / float64(s.Decisions) * 100
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
