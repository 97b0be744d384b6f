// Package metrics exposes Prometheus collectors for the contact workflow.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RateLimitDecisions   *prometheus.CounterVec
	RateLimitStoreErrors *prometheus.CounterVec
	RateLimitSwept       prometheus.Counter
	SpamRejections       *prometheus.CounterVec
	ContactRequests      *prometheus.CounterVec
	Notifications        *prometheus.CounterVec
	NotificationsDropped prometheus.Counter
}

// New registers collectors on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RateLimitDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medalroll_ratelimit_decisions_total",
			Help: "Rate limit checks by action and outcome",
		}, []string{"action", "outcome"}),
		RateLimitStoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medalroll_ratelimit_store_errors_total",
			Help: "Counter store failures by action and the failure policy applied",
		}, []string{"action", "policy"}),
		RateLimitSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "medalroll_ratelimit_counters_swept_total",
			Help: "Expired in-memory counters removed by the background sweep",
		}),
		SpamRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medalroll_spam_rejections_total",
			Help: "Submissions rejected by the spam gate by reason",
		}, []string{"reason"}),
		ContactRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medalroll_contact_requests_total",
			Help: "Contact request lifecycle events",
		}, []string{"event"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medalroll_notifications_total",
			Help: "Notification deliveries by kind and result",
		}, []string{"kind", "result"}),
		NotificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "medalroll_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		}),
	}
}

func (m *Metrics) ObserveRateLimit(action string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.RateLimitDecisions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncrementStoreErrors(action, policy string) {
	if m == nil {
		return
	}
	m.RateLimitStoreErrors.WithLabelValues(action, policy).Inc()
}

func (m *Metrics) AddSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RateLimitSwept.Add(float64(n))
}

func (m *Metrics) IncrementSpamRejections(reason string) {
	if m == nil {
		return
	}
	m.SpamRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementContactEvent(event string) {
	if m == nil {
		return
	}
	m.ContactRequests.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.Notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncrementNotificationsDropped() {
	if m == nil {
		return
	}
	m.NotificationsDropped.Inc()
}
