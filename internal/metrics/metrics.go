package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	CheckoutSessions    *prometheus.CounterVec
	Submissions         *prometheus.CounterVec
	Notifications       *prometheus.CounterVec
	BackOfficeLatencyMS *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kundeklubb",
		Name:      "checkout_sessions_total",
		Help:      "Hosted payment sessions requested, by result.",
	}, []string{"result"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kundeklubb",
		Name:      "order_submissions_total",
		Help:      "Back-office order submissions, by terminal state.",
	}, []string{"state"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kundeklubb",
		Name:      "notifications_total",
		Help:      "Staff order notifications, by result.",
	}, []string{"result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kundeklubb",
		Name:      "backoffice_request_duration_ms",
		Help:      "Back-office request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"op"})

	reg.MustRegister(sessions, submissions, notifications, latency)
	return &Metrics{
		CheckoutSessions:    sessions,
		Submissions:         submissions,
		Notifications:       notifications,
		BackOfficeLatencyMS: latency,
	}
}

func (m *Metrics) ObserveSession(result string) {
	if m == nil {
		return
	}
	m.CheckoutSessions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSubmission(state string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveNotification(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveBackOffice(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.BackOfficeLatencyMS.WithLabelValues(op).Observe(float64(d.Milliseconds()))
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
