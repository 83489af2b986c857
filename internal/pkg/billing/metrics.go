package billing

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts webhook traffic and payment transitions. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	webhookEvents        *prometheus.CounterVec
	paymentTransitions   *prometheus.CounterVec
	notificationFailures prometheus.Counter
}

// NewMetrics creates the billing collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mensajero",
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "PayPal webhook deliveries by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		paymentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mensajero",
			Subsystem: "billing",
			Name:      "payment_transitions_total",
			Help:      "Payment status transitions applied, by target status.",
		}, []string{"status"}),
		notificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mensajero",
			Subsystem: "billing",
			Name:      "notification_failures_total",
			Help:      "Payment confirmation notifications that could not be sent.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.webhookEvents, m.paymentTransitions, m.notificationFailures)
	}
	return m
}

func (m *Metrics) observeWebhook(eventType EventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(metricEventType(eventType), outcome).Inc()
}

func (m *Metrics) observeTransition(status string) {
	if m == nil {
		return
	}
	m.paymentTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) observeNotificationFailure() {
	if m == nil {
		return
	}
	m.notificationFailures.Inc()
}

// metricEventType keeps label cardinality bounded: unknown event types are
// folded into "other".
func metricEventType(t EventType) string {
	switch t {
	case EventOrderApproved, EventPaymentCompleted, EventPaymentDenied, EventPaymentRefunded:
		return string(t)
	default:
		return "other"
	}
}
