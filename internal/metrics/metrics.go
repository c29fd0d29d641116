package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "check8auto"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	otpSendsTotal     *prometheus.CounterVec
	otpVerifiesTotal  *prometheus.CounterVec
	orderAcceptsTotal *prometheus.CounterVec
	acceptDuration    prometheus.Histogram
	ledgerPostings    *prometheus.CounterVec
	ordersCreated     prometheus.Counter
	ordersExpired     prometheus.Counter
}

// New registers all collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		otpSendsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "sends_total",
			Help:      "One-time code sends partitioned by channel and result.",
		}, []string{"channel", "result"}),
		otpVerifiesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "verifies_total",
			Help:      "One-time code verifications partitioned by result.",
		}, []string{"result"}),
		orderAcceptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "accepts_total",
			Help:      "Order acceptance attempts partitioned by result.",
		}, []string{"result"}),
		acceptDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "accept_duration_seconds",
			Help:      "Latency of the order acceptance transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		ledgerPostings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "postings_total",
			Help:      "Balance debits and credits partitioned by reason.",
		}, []string{"reason"}),
		ordersCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Orders created.",
		}),
		ordersExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "expired_total",
			Help:      "Pending orders cancelled after their expiration time.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveOTPSend(channel, result string) {
	if m == nil {
		return
	}
	m.otpSendsTotal.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) ObserveOTPVerify(result string) {
	if m == nil {
		return
	}
	m.otpVerifiesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAccept(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.orderAcceptsTotal.WithLabelValues(result).Inc()
	m.acceptDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePosting(reason string) {
	if m == nil {
		return
	}
	m.ledgerPostings.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) ObserveOrderExpired() {
	if m == nil {
		return
	}
	m.ordersExpired.Inc()
}
