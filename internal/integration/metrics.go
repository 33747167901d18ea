package integration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeRecovered = "recovered"
	outcomeExhausted = "exhausted"
)

// fallbacksTotal counts per-call transitions from the tool backend to the
// API backend, labeled by capability and whether the retry recovered.
var fallbacksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "autopr_transport_fallbacks_total",
		Help: "Total capability calls that fell back from the tool backend to the API backend",
	},
	[]string{"capability", "outcome"},
)

func recordFallback(capability, outcome string) {
	fallbacksTotal.WithLabelValues(capability, outcome).Inc()
}
