package alert

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"travel-booking-payments/internal/domain/ports/adapter"
)

var _ adapter.AlertNotifier = (*TelegramNotifier)(nil)

// TelegramNotifier pushes settlement anomalies to the ops channel. Alerting
// is advisory: a failed send is logged and never fails the settlement that
// raised it.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, log: logger}, nil
}

func (n *TelegramNotifier) Alert(ctx context.Context, kind, message string) error {
	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("[%s]\n%s", kind, message))
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Error().Err(err).Str("kind", kind).Msg("ops alert send failed")
		return err
	}
	return nil
}
