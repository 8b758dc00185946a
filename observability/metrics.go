package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	instructionMetricsOnce sync.Once
	instructionRegistry    *InstructionMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stead",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stead",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stead",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stead",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of module requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" or
// "unauthorized" so dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// InstructionMetrics tracks executed ledger instructions.
type InstructionMetrics struct {
	executed *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	volume   prometheus.Counter
	fees     *prometheus.CounterVec
}

// Instructions returns the instruction metrics registry.
func Instructions() *InstructionMetrics {
	instructionMetricsOnce.Do(func() {
		instructionRegistry = &InstructionMetrics{
			executed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stead",
				Subsystem: "instruction",
				Name:      "executed_total",
				Help:      "Instructions executed segmented by name, outcome and error tag.",
			}, []string{"instruction", "outcome", "tag"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stead",
				Subsystem: "instruction",
				Name:      "duration_seconds",
				Help:      "Latency distribution for instruction execution including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"instruction"}),
			volume: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stead",
				Subsystem: "marketplace",
				Name:      "purchase_volume_total",
				Help:      "Sum of the prices of every committed purchase.",
			}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stead",
				Subsystem: "marketplace",
				Name:      "payouts_total",
				Help:      "Committed purchase proceeds segmented by recipient role.",
			}, []string{"role"}),
		}
		prometheus.MustRegister(
			instructionRegistry.executed,
			instructionRegistry.latency,
			instructionRegistry.volume,
			instructionRegistry.fees,
		)
	})
	return instructionRegistry
}

// Observe records one instruction. tag is empty for committed instructions.
func (m *InstructionMetrics) Observe(instruction, tag string, duration time.Duration) {
	if m == nil {
		return
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = "unknown"
	}
	outcome := "committed"
	if tag != "" {
		outcome = "aborted"
	}
	m.executed.WithLabelValues(instruction, outcome, tag).Inc()
	m.latency.WithLabelValues(instruction).Observe(duration.Seconds())
}

// RecordPurchase adds a committed purchase to the marketplace counters.
func (m *InstructionMetrics) RecordPurchase(price, renter, platform, exhibitor uint64) {
	if m == nil {
		return
	}
	m.volume.Add(float64(price))
	m.fees.WithLabelValues("renter").Add(float64(renter))
	m.fees.WithLabelValues("platform").Add(float64(platform))
	m.fees.WithLabelValues("exhibitor").Add(float64(exhibitor))
}
