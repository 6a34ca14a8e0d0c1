package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		checkoutsTotal,
		reconcileTotal,
		correlationTotal,
		materializeTotal,
		revenueTotal,
		gatewayDuration,
	)
}

var (
	// result: ok|already_purchased|unavailable|gateway_error|invalid
	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_initiations_total",
			Help: "Checkout initiations by purpose and result.",
		},
		[]string{"purpose", "result"},
	)

	// state: success|pending|failed|error
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_total",
			Help: "Terminal states reached by the payment return flow.",
		},
		[]string{"state", "source"},
	)

	// strategy: metadata|query|checkout_state|title_price|price|generic
	correlationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_correlation_total",
			Help: "Which fallback step resolved the payment subject.",
		},
		[]string{"strategy"},
	)

	materializeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_materialize_total",
			Help: "Materialization outcomes (completed/generic/already_purchased/partial_activation).",
		},
		[]string{"outcome"},
	)

	revenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Settled amount in minor units, labeled by currency and purpose.",
		},
		[]string{"currency", "purpose"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_duration_seconds",
			Help:    "Latency of payment provider calls.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op", "result"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncCheckout(purpose, result string) {
	checkoutsTotal.WithLabelValues(norm(purpose), norm(result)).Inc()
}

func IncReconcile(state, source string) {
	reconcileTotal.WithLabelValues(norm(state), norm(source)).Inc()
}

func IncCorrelation(strategy string) {
	correlationTotal.WithLabelValues(norm(strategy)).Inc()
}

func IncMaterialize(outcome string) {
	materializeTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddRevenue(currency, purpose string, amount int64) {
	revenueTotal.WithLabelValues(norm(currency), norm(purpose)).Add(float64(amount))
}

func ObserveGateway(op string, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	gatewayDuration.WithLabelValues(norm(op), result).Observe(d.Seconds())
}
