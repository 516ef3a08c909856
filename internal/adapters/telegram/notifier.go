package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"delphi/internal/adapters/config"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// Notifier pushes alert messages to a single Telegram chat.
// Outbound only, the bot never polls for updates.
type Notifier struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewNotifier creates a Telegram notifier for the configured alert chat
func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	if !cfg.Enabled() {
		return nil, errors.Wrap(errors.ErrInvalidInput, "telegram bot token and chat id are required")
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	log := logger.Get().With("component", "telegram_notifier")
	log.Infof("Authorized on account %s", api.Self.UserName)

	return &Notifier{
		api:    api,
		chatID: cfg.AlertChatID,
		// Conservative: 20 msg/sec (Telegram limit is 30)
		limiter: rate.NewLimiter(rate.Limit(20), 30),
		log:     log,
	}, nil
}

// Send delivers a Markdown-formatted message to the alert chat
func (n *Notifier) Send(ctx context.Context, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait failed")
	}

	start := time.Now()

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"

	_, err := n.api.Send(msg)

	duration := time.Since(start)

	if err != nil {
		n.log.Errorw("Failed to send alert",
			"chat_id", n.chatID,
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		return errors.Wrap(err, "failed to send alert")
	}

	n.log.Debugw("Alert sent",
		"chat_id", n.chatID,
		"duration_ms", duration.Milliseconds(),
	)

	return nil
}
