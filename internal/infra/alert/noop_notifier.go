package alert

import (
	"context"

	"github.com/rs/zerolog"

	"travel-booking-payments/internal/domain/ports/adapter"
)

var _ adapter.AlertNotifier = (*LogNotifier)(nil)

// LogNotifier is the fallback when no Telegram channel is configured:
// anomalies still land in the structured log.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) Alert(ctx context.Context, kind, message string) error {
	n.log.Warn().Str("kind", kind).Str("message", message).Msg("ops alert")
	return nil
}
