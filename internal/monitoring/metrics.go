// Package monitoring exposes the gateway's Prometheus instrumentation.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentTransitions counts committed status changes by edge.
	PaymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_payment_transitions_total",
		Help: "Committed payment status transitions, labelled by from and to status.",
	}, []string{"from", "to"})

	// VersionConflicts counts writes that lost the optimistic version race.
	VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_version_conflicts_total",
		Help: "Payment updates rejected because another writer committed first.",
	})

	// DuplicateOrders counts initiates refused by the order claim.
	DuplicateOrders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_duplicate_orders_total",
		Help: "Initiate attempts that reused a (merchant, order) pair.",
	})

	// IntegrityFailures counts audit hash mismatches and ledger drift.
	IntegrityFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_integrity_failures_total",
		Help: "Detected integrity violations in the audit chain or ledger.",
	})

	// ExpiredPayments counts payments closed by the expiration sweep.
	ExpiredPayments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_expired_payments_total",
		Help: "Payments moved to EXPIRED by the background sweep.",
	})

	// ArchivedAuditEntries counts entries the retention cycle archived.
	ArchivedAuditEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_audit_entries_archived_total",
		Help: "Audit entries marked archived by the retention worker.",
	})

	// PurgedAuditEntries counts archived entries the retention cycle deleted.
	PurgedAuditEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_audit_entries_purged_total",
		Help: "Archived audit entries purged by the retention worker.",
	})

	// RetentionCycles counts retention runs by outcome.
	RetentionCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_retention_cycles_total",
		Help: "Retention worker cycles, labelled by outcome.",
	}, []string{"outcome"})
)
