package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the domain counters. A nil *Metrics records nothing.
type Metrics struct {
	invoicesSaved  *prometheus.CounterVec
	returnsSaved   prometheus.Counter
	duplicateHits  prometheus.Counter
	activeSessions prometheus.Gauge
}

// NewMetrics creates the domain metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invoicesSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billdesk",
			Name:      "invoices_saved_total",
			Help:      "Invoices saved, by operation.",
		}, []string{"op"}),
		returnsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billdesk",
			Name:      "returns_saved_total",
			Help:      "Return notes created or updated through a return session.",
		}),
		duplicateHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billdesk",
			Name:      "duplicate_return_hits_total",
			Help:      "Searches or submits that found an existing return note.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "billdesk",
			Name:      "return_sessions",
			Help:      "Return sessions currently held.",
		}),
	}
	reg.MustRegister(m.invoicesSaved, m.returnsSaved, m.duplicateHits, m.activeSessions)
	return m
}

func (m *Metrics) invoiceSaved(op string) {
	if m != nil {
		m.invoicesSaved.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) returnSaved() {
	if m != nil {
		m.returnsSaved.Inc()
	}
}

func (m *Metrics) duplicateHit() {
	if m != nil {
		m.duplicateHits.Inc()
	}
}

func (m *Metrics) sessions(n int) {
	if m != nil {
		m.activeSessions.Set(float64(n))
	}
}
