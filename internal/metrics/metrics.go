// Package metrics exposes Prometheus instrumentation for the signal
// execution pipeline, served at /metrics in text exposition format.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SignalsTotal counts processed signals by action and terminal result.
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_signals_total",
			Help: "Signals processed, by action and result",
		},
		[]string{"action", "result"},
	)

	// OrdersTotal counts submitted orders by side and execution mode.
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_orders_total",
			Help: "Orders submitted to the exchange, by side and mode (live|dry_run)",
		},
		[]string{"side", "mode"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, OrdersTotal)
}
