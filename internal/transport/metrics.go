package transport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/trustlens/internal/envelope"
)

// Metrics counts engine outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	requests  *prometheus.CounterVec
	retries   prometheus.Counter
	fallbacks prometheus.Counter
}

// NewMetrics creates the engine counters and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlens_requests_total",
			Help: "Completed data-access calls by outcome code (ok on success).",
		}, []string{"code"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustlens_retries_total",
			Help: "Retries issued after transport failures.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustlens_cache_fallbacks_total",
			Help: "Calls answered from the fetch cache after retries were exhausted.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.retries, m.fallbacks)
	}
	return m
}

func (m *Metrics) observe(err error) {
	if m == nil {
		return
	}
	code := "ok"
	if err != nil {
		code = envelope.CodeInternal
		if e, ok := envelope.As(err); ok {
			code = e.Code
		}
	}
	m.requests.WithLabelValues(code).Inc()
}

func (m *Metrics) retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) fellBack() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// Requests exposes the request counter for the given code.
func (m *Metrics) Requests(code string) prometheus.Counter {
	return m.requests.WithLabelValues(code)
}

// Retries exposes the retry counter.
func (m *Metrics) Retries() prometheus.Counter {
	return m.retries
}

// Fallbacks exposes the cache fallback counter.
func (m *Metrics) Fallbacks() prometheus.Counter {
	return m.fallbacks
}
