package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		settlementEventsTotal,
		settlementAnomaliesTotal,
		balanceMutationsTotal,
		correlationResolutionsTotal,
	)
}

var (
	settlementEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_events_total",
			Help: "Canonical settlement events by provider, kind and outcome (applied/duplicate/error).",
		},
		[]string{"provider", "kind", "outcome"},
	)

	// anomaly: signature_invalid|correlation_not_found|ambiguous_correlation|
	// compensation_inconsistency|provider_call_failure
	settlementAnomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_anomalies_total",
			Help: "Reconciliation anomalies by taxonomy member.",
		},
		[]string{"provider", "anomaly"},
	)

	balanceMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_mutations_total",
			Help: "Applied balance mutations by field (credits/wallet) and direction (credit/debit).",
		},
		[]string{"field", "direction"},
	)

	// method: token|external_id|heuristic
	correlationResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "correlation_resolutions_total",
			Help: "Resolved settlement correlations by method.",
		},
		[]string{"provider", "method"},
	)
)

func IncSettlementEvent(provider, kind, outcome string) {
	settlementEventsTotal.WithLabelValues(norm(provider), norm(kind), norm(outcome)).Inc()
}

func IncAnomaly(provider, anomaly string) {
	settlementAnomaliesTotal.WithLabelValues(norm(provider), norm(anomaly)).Inc()
}

func IncBalanceMutation(field, direction string) {
	balanceMutationsTotal.WithLabelValues(norm(field), norm(direction)).Inc()
}

func IncCorrelation(provider, method string) {
	correlationResolutionsTotal.WithLabelValues(norm(provider), norm(method)).Inc()
}
