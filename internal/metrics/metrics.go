// Package metrics exposes Prometheus counters for authentication, login and
// audit activity. All methods are safe on a nil *Metrics so services can run
// without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes used as the "outcome" label.
const (
	LoginSuccess     = "success"
	LoginBadPassword = "invalid_credentials"
	LoginDisabled    = "disabled"
	LoginThrottled   = "throttled"
)

type Metrics struct {
	AuthRejections     prometheus.Counter
	AuditRecords       *prometheus.CounterVec
	AuditWriteFailures prometheus.Counter
	AuditWriteDuration prometheus.Histogram
	Logins             *prometheus.CounterVec
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AuthRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "hr_auth_rejections_total",
			Help: "Requests rejected because the bearer token failed verification",
		}),
		AuditRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hr_audit_records_total",
			Help: "Audit records persisted, by action",
		}, []string{"action"}),
		AuditWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "hr_audit_write_failures_total",
			Help: "Audit records dropped because validation or the store failed",
		}),
		AuditWriteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hr_audit_write_duration_seconds",
			Help:    "Duration of audit store writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hr_logins_total",
			Help: "Login attempts, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) AuthRejected() {
	if m == nil {
		return
	}
	m.AuthRejections.Inc()
}

func (m *Metrics) AuditRecorded(action string) {
	if m == nil {
		return
	}
	m.AuditRecords.WithLabelValues(action).Inc()
}

func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Inc()
}

// ObserveAuditWrite records store latency. Call with time.Now() taken before
// the write.
func (m *Metrics) ObserveAuditWrite(start time.Time) {
	if m == nil {
		return
	}
	m.AuditWriteDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}
