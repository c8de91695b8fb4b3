package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
)

const (
	quoteTimeout    = 10 * time.Second
	updateWorkers   = 4
	workerQueueSize = 32
)

// botAPI - the subset of *tgbotapi.BotAPI the handler uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler - Telegram front-end: commands that read or change subscriptions.
// The subscriber id is the chat id, so groups can subscribe too.
type Handler struct {
	bot      botAPI
	registry domain.SubscriptionRegistry
	store    domain.QuoteStore
	fetcher  domain.QuoteFetcher

	adminID int64
	logger  *slog.Logger

	// chats waiting for an interval after a bare /configurar
	awaiting map[int64]bool
	mu       sync.Mutex

	now func() time.Time
}

func NewHandler(
	bot botAPI,
	registry domain.SubscriptionRegistry,
	store domain.QuoteStore,
	fetcher domain.QuoteFetcher,
	adminID int64,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		bot:      bot,
		registry: registry,
		store:    store,
		fetcher:  fetcher,
		adminID:  adminID,
		logger:   logger.With("component", "bot"),
		awaiting: make(map[int64]bool),
		now:      time.Now,
	}
}

// Start reads updates until ctx is cancelled. Messages are spread over a fixed
// pool of workers by chat id, so one chat is always handled in arrival order
// while different chats run in parallel.
func (h *Handler) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)

	queues := make([]chan *tgbotapi.Message, updateWorkers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan *tgbotapi.Message, workerQueueSize)
		wg.Add(1)
		go h.worker(ctx, queues[i], &wg)
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	h.logger.Info("bot started", slog.Int("workers", updateWorkers))

	for {
		select {
		case <-ctx.Done():
			h.bot.StopReceivingUpdates()
			h.logger.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil || msg.Chat == nil {
				continue
			}
			select {
			case queues[queueFor(msg.Chat.ID, len(queues))] <- msg:
			case <-ctx.Done():
				h.bot.StopReceivingUpdates()
				return nil
			}
		}
	}
}

func (h *Handler) worker(ctx context.Context, queue <-chan *tgbotapi.Message, wg *sync.WaitGroup) {
	defer wg.Done()
	for msg := range queue {
		h.handleMessage(ctx, msg)
	}
}

// queueFor maps a chat id (negative for groups) to a worker index.
func queueFor(chatID int64, n int) int {
	return int(uint64(chatID) % uint64(n))
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			h.send(chatID, msgStart)
		case "help":
			h.send(chatID, msgHelp)
		case "cotizacion":
			h.cmdQuote(ctx, chatID)
		case "configurar":
			h.cmdConfigure(ctx, chatID, strings.TrimSpace(msg.CommandArguments()))
		case "cancelar":
			h.cmdCancel(chatID)
		case "parar":
			h.cmdStop(ctx, chatID)
		case "estado":
			h.cmdStatus(ctx, chatID)
		case "reset":
			if msg.From != nil && msg.From.ID == h.adminID && h.adminID != 0 {
				h.cmdReset(ctx, chatID)
			} else {
				h.send(chatID, msgUnknown)
			}
		default:
			h.send(chatID, msgUnknown)
		}
		return
	}

	if h.isAwaiting(chatID) {
		h.applyInterval(ctx, chatID, strings.TrimSpace(msg.Text))
		return
	}
	h.send(chatID, msgUnknown)
}

// --- Commands ---

func (h *Handler) cmdQuote(ctx context.Context, chatID int64) {
	fetchCtx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()

	q, err := h.fetcher.FetchQuote(fetchCtx)
	if err != nil {
		h.logger.Warn("quote request failed", slog.Int64("chat_id", chatID), slog.String("err", err.Error()))
		h.send(chatID, msgQuoteError)
		return
	}
	h.send(chatID, domain.FormatQuote(q, h.now()))
}

func (h *Handler) cmdConfigure(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		h.setAwaiting(chatID, true)
		h.send(chatID, configPrompt())
		return
	}
	h.applyInterval(ctx, chatID, arg)
}

// applyInterval - one atomic SetSubscription call. An invalid answer keeps the
// chat in the awaiting state so the user can retry.
func (h *Handler) applyInterval(ctx context.Context, chatID int64, text string) {
	seconds, err := strconv.Atoi(text)
	if err != nil {
		h.setAwaiting(chatID, true)
		h.send(chatID, msgConfigInvalid)
		return
	}

	ok, err := h.registry.SetSubscription(ctx, domain.SubscriberID(chatID), seconds)
	if err != nil {
		h.logger.Error("failed to save subscription", slog.Int64("chat_id", chatID), slog.String("err", err.Error()))
		h.send(chatID, msgStorageError)
		return
	}
	if !ok {
		h.setAwaiting(chatID, true)
		h.send(chatID, configRange())
		return
	}

	h.setAwaiting(chatID, false)
	h.logger.Info("subscription configured", slog.Int64("chat_id", chatID), slog.Int("interval_seconds", seconds))
	h.send(chatID, fmt.Sprintf(msgConfigSuccess, seconds))
}

func (h *Handler) cmdCancel(chatID int64) {
	if !h.isAwaiting(chatID) {
		h.send(chatID, msgNothingPending)
		return
	}
	h.setAwaiting(chatID, false)
	h.send(chatID, msgConfigCancel)
}

func (h *Handler) cmdStop(ctx context.Context, chatID int64) {
	h.setAwaiting(chatID, false)

	found, err := h.registry.Disable(ctx, domain.SubscriberID(chatID))
	if err != nil {
		h.logger.Error("failed to disable subscription", slog.Int64("chat_id", chatID), slog.String("err", err.Error()))
		h.send(chatID, msgStorageError)
		return
	}
	if !found {
		h.send(chatID, msgNoConfig)
		return
	}
	h.logger.Info("subscription disabled", slog.Int64("chat_id", chatID))
	h.send(chatID, msgStopSuccess)
}

func (h *Handler) cmdStatus(ctx context.Context, chatID int64) {
	sub, err := h.registry.Get(ctx, domain.SubscriberID(chatID))
	if err != nil {
		h.logger.Error("failed to read subscription", slog.Int64("chat_id", chatID), slog.String("err", err.Error()))
		h.send(chatID, msgStorageError)
		return
	}
	if sub == nil || !sub.Enabled {
		h.send(chatID, msgNoConfig)
		return
	}
	h.send(chatID, currentConfig(*sub))
}

func (h *Handler) cmdReset(ctx context.Context, chatID int64) {
	if err := h.store.Reset(ctx); err != nil {
		h.logger.Error("reset failed", slog.String("err", err.Error()))
		h.send(chatID, msgStorageError)
		return
	}
	h.logger.Warn("baseline and cursors reset by admin", slog.Int64("chat_id", chatID))
	h.send(chatID, msgResetDone)
}

// --- State ---

func (h *Handler) isAwaiting(chatID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.awaiting[chatID]
}

func (h *Handler) setAwaiting(chatID int64, v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v {
		h.awaiting[chatID] = true
	} else {
		delete(h.awaiting, chatID)
	}
}

func (h *Handler) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Warn("reply failed", slog.Int64("chat_id", chatID), slog.String("err", err.Error()))
	}
}
