package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
)

// MessageSender - the subset of *tgbotapi.BotAPI used for outgoing messages
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var _ domain.Notifier = (*Notifier)(nil)

type Notifier struct {
	sender MessageSender
}

func NewNotifier(sender MessageSender) *Notifier {
	return &Notifier{sender: sender}
}

// NewBotAPI authorizes the bot with an HTTP client bounded by timeout, so that
// every Send issued through it fails instead of hanging.
func NewBotAPI(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return bot, nil
}

// Notify sends an HTML message. The call returns when ctx is done even if the
// underlying request is still in flight.
func (n *Notifier) Notify(ctx context.Context, id domain.SubscriberID, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: chat %d: %w", domain.ErrSend, id, err)
	}

	msg := tgbotapi.NewMessage(int64(id), text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	done := make(chan error, 1)
	go func() {
		_, err := n.sender.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: chat %d: %w", domain.ErrSend, id, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: chat %d: %w", domain.ErrSend, id, ctx.Err())
	}
}
