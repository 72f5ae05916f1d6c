package adapter

import "context"

// AlertNotifier pushes reconciliation anomalies to an operator channel.
// Silent auto-correction of money movement is never acceptable, so every
// CompensationInconsistency, unresolved correlation, and heuristic-fallback
// use goes through here in addition to logs and metrics.
type AlertNotifier interface {
	Alert(ctx context.Context, kind, message string) error
}
