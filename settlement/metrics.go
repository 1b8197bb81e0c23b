package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "lndboard"

var (
	invoicesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "invoices_created_total",
		Help:      "Invoices created for validated callbacks.",
	})

	invoiceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "invoice_failures_total",
		Help:      "Callbacks that failed because no invoice could be created.",
	})

	commentsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "comments_applied_total",
		Help:      "Settled invoices whose comment was posted.",
	})

	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "comment_persist_failures_total",
		Help:      "Comments that were broadcast but could not be stored.",
	})

	watchersAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "watchers_abandoned_total",
		Help:      "Invoices that stopped being watched before settling.",
	})

	pendingInvoices = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "pending_invoices",
		Help:      "Invoices currently waiting for settlement.",
	})
)
