package cleaner

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles Prometheus collectors for the cleaning stage.
type Metrics struct {
	CleanedTotal  prometheus.Counter
	RejectedTotal *prometheus.CounterVec
	RepairedTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers the cleaner metrics on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	cleaned := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cleaner_records_cleaned_total",
			Help: "Raw records that produced a staging record.",
		},
	)
	rejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_records_rejected_total",
			Help: "Raw records dropped, by reason.",
		},
		[]string{"reason"},
	)
	repaired := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_fields_repaired_total",
			Help: "Field repairs and imputations applied, by field.",
		},
		[]string{"field"},
	)

	registry.MustRegister(cleaned, rejected, repaired)

	return &Metrics{
		CleanedTotal:  cleaned,
		RejectedTotal: rejected,
		RepairedTotal: repaired,
	}
}

// IncCleaned increments the cleaned records counter.
func (m *Metrics) IncCleaned() {
	if m == nil {
		return
	}
	m.CleanedTotal.Inc()
}

// IncRejected increments the rejected records counter for a reason label.
func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(reason).Inc()
}

// IncRepaired increments the repaired fields counter for a field label.
func (m *Metrics) IncRepaired(field string) {
	if m == nil {
		return
	}
	m.RepairedTotal.WithLabelValues(field).Inc()
}
