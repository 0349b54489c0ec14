package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"policykeeper-hq/policykeeper/pkg/config"
)

// OtherRoute replaces route labels once the cardinality limit is reached.
const OtherRoute = "other"

// Collector owns the service's Prometheus registry and every metric in it.
// It implements policy.Observer so the policy service can report operation
// outcomes without importing Prometheus.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	policyMetrics  *PolicyMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a metrics collector. If registry is nil a fresh
// registry is created; the process and Go runtime collectors are registered
// on it.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	svc := policy.NewService(store, &policy.ServiceConfig{Observer: collector})
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		requestMetrics:     NewRequestMetrics(cfg, registry),
		policyMetrics:      NewPolicyMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

// RecordRequest records a completed HTTP request. route is the matched
// route pattern, not the raw path.
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	if !c.cardinalityLimiter.Allow(method + " " + route) {
		route = OtherRoute
	}

	c.requestMetrics.RecordRequest(method, route, strconv.Itoa(status), duration)
}

// IncInFlight increments the in-flight request gauge.
func (c *Collector) IncInFlight() {
	if c.config.Enabled {
		c.requestMetrics.inFlight.Inc()
	}
}

// DecInFlight decrements the in-flight request gauge.
func (c *Collector) DecInFlight() {
	if c.config.Enabled {
		c.requestMetrics.inFlight.Dec()
	}
}

// ObserveOperation records the outcome of a policy service operation.
func (c *Collector) ObserveOperation(operation, outcome string) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveValidationFailure records a rejected field.
func (c *Collector) ObserveValidationFailure(field string) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.validationFailures.WithLabelValues(field).Inc()
}

// SetPolicyCounts publishes the lifecycle gauge.
func (c *Collector) SetPolicyCounts(active, expiringSoon, expired int) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.SetCounts(active, expiringSoon, expired)
}

// RecordSweep records a sweep run.
func (c *Collector) RecordSweep(success bool, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.RecordSweep(success, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already tracked or fits under the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
