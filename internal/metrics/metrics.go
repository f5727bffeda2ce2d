package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	gateOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "image_studio",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Entitlement gate decisions by identity kind and outcome.",
		},
		[]string{"identity", "outcome"},
	)

	ledgerIncrements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "image_studio",
			Subsystem: "ledger",
			Name:      "increments_total",
			Help:      "Usage ledger increment attempts by strategy and result.",
		},
		[]string{"strategy", "result"},
	)

	billingReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "image_studio",
			Subsystem: "billing",
			Name:      "usage_reports_total",
			Help:      "Metered billing usage reports by result.",
		},
		[]string{"result"},
	)

	transformDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "image_studio",
			Subsystem: "transform",
			Name:      "duration_seconds",
			Help:      "Duration of calls to the transformation service.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		},
		[]string{"mode", "status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		gateOutcomes,
		ledgerIncrements,
		billingReports,
		transformDuration,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordGateDecision(identity, outcome string) {
	gateOutcomes.WithLabelValues(identity, outcome).Inc()
}

func RecordLedgerIncrement(strategy string, err error) {
	ledgerIncrements.WithLabelValues(strategy, result(err)).Inc()
}

func RecordBillingReport(err error) {
	billingReports.WithLabelValues(result(err)).Inc()
}

func RecordTransform(mode string, d time.Duration, err error) {
	transformDuration.WithLabelValues(mode, result(err)).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
