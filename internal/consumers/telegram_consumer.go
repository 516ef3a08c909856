package consumers

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"delphi/internal/adapters/kafka"
	"delphi/internal/adapters/telegram"
	"delphi/internal/events"
	"delphi/internal/metrics"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// TelegramConsumer delivers formatted notifications to the alert chat
type TelegramConsumer struct {
	consumer *kafka.Consumer
	notifier *telegram.Notifier
	log      *logger.Logger
}

// NewTelegramConsumer creates the notification delivery stage
func NewTelegramConsumer(consumer *kafka.Consumer, notifier *telegram.Notifier) *TelegramConsumer {
	return &TelegramConsumer{
		consumer: consumer,
		notifier: notifier,
		log:      logger.Get().With("component", "telegram_consumer"),
	}
}

// Start consumes notifications until the context is cancelled
func (tc *TelegramConsumer) Start(ctx context.Context) error {
	defer func() {
		if err := tc.consumer.Close(); err != nil {
			tc.log.Errorw("Failed to close telegram consumer", "error", err)
		}
	}()
	return tc.consumer.Consume(ctx, tc.handleMessage)
}

func (tc *TelegramConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var notification events.Notification
	if err := json.Unmarshal(msg.Value, &notification); err != nil {
		return errors.Wrap(err, "unmarshal notification")
	}
	if notification.Text == "" {
		tc.log.Debugw("Skipping empty notification", "symbol", notification.Symbol)
		return nil
	}

	err := tc.notifier.Send(ctx, notification.Text)
	metrics.RecordNotification(err)
	if err != nil {
		return errors.Wrapf(err, "deliver notification for %s", notification.Symbol)
	}

	tc.log.Debugw("Notification delivered",
		"symbol", notification.Symbol,
		"severity", notification.Severity)
	return nil
}
