package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the billing counters exported on /metrics.
type Metrics struct {
	InvoiceMutations     *prometheus.CounterVec
	PriceChanges         prometheus.Counter
	AuditRecordFailures  *prometheus.CounterVec
	AuthorizationDenials *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics registered on the default registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New builds and registers the counters. A nil registerer leaves them
// unregistered, which tests use to stay isolated.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvoiceMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_invoice_mutations_total",
			Help: "Committed invoice mutations by action.",
		}, []string{"action"}),
		PriceChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_price_changes_total",
			Help: "Committed pricing ledger transitions.",
		}),
		AuditRecordFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_audit_record_failures_total",
			Help: "Audit rows that could not be written; the audit trail is behind the invoice table by this many rows.",
		}, []string{"stage"}),
		AuthorizationDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_authorization_denials_total",
			Help: "Invoice operations denied by the authorization guard.",
		}, []string{"action"}),
	}
	if registerer != nil {
		registerer.MustRegister(m.InvoiceMutations, m.PriceChanges, m.AuditRecordFailures, m.AuthorizationDenials)
	}
	return m
}
