package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
	"github.com/romanzzaa/dolar-rate-bot/internal/infrastructure/memory"
)

const adminID = 42

type fakeBot struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
	stopped bool
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

func (b *fakeBot) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.sent)
	return b.sent[len(b.sent)-1]
}

type stubFetcher struct {
	quote domain.Quote
	err   error
}

func (f stubFetcher) FetchQuote(context.Context) (domain.Quote, error) {
	return f.quote, f.err
}

func newTestHandler(fetcher domain.QuoteFetcher) (*Handler, *fakeBot, *memory.Store) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update)}
	store := memory.NewStore()
	h := NewHandler(bot, store, store, fetcher, adminID, nil)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	return h, bot, store
}

func message(chatID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID},
	}
	if strings.HasPrefix(text, "/") {
		n := strings.IndexByte(text, ' ')
		if n < 0 {
			n = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	}
	return msg
}

func TestHandler_ConfigureWithArgument(t *testing.T) {
	h, bot, store := newTestHandler(stubFetcher{})
	ctx := context.Background()

	h.handleMessage(ctx, message(1, "/configurar 30"))
	assert.Contains(t, bot.last(t).Text, "<b>30</b>")
	assert.Equal(t, tgbotapi.ModeHTML, bot.last(t).ParseMode)

	sub, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, 30, sub.IntervalSeconds)
	assert.True(t, sub.Enabled)
}

func TestHandler_ConfigureBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		stored  bool
		replyIn string
	}{
		{"below range", "4", false, "entre 5 y 60"},
		{"above range", "61", false, "entre 5 y 60"},
		{"lower bound", "5", true, "<b>5</b>"},
		{"upper bound", "60", true, "<b>60</b>"},
		{"not a number", "abc", false, "no es un número"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, bot, store := newTestHandler(stubFetcher{})
			ctx := context.Background()

			h.handleMessage(ctx, message(7, "/configurar "+tt.arg))
			assert.Contains(t, bot.last(t).Text, tt.replyIn)

			sub, err := store.Get(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, tt.stored, sub != nil)
			assert.Equal(t, !tt.stored, h.isAwaiting(7))
		})
	}
}

func TestHandler_ConfigureConversation(t *testing.T) {
	h, bot, store := newTestHandler(stubFetcher{})
	ctx := context.Background()

	h.handleMessage(ctx, message(1, "/configurar"))
	assert.True(t, h.isAwaiting(1))
	assert.Contains(t, bot.last(t).Text, "entre 5 y 60")

	h.handleMessage(ctx, message(1, "100"))
	assert.True(t, h.isAwaiting(1), "out of range keeps the chat waiting")

	h.handleMessage(ctx, message(1, " 15 "))
	assert.False(t, h.isAwaiting(1))

	sub, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, 15, sub.IntervalSeconds)

	// Plain text without a pending configuration is not an interval.
	h.handleMessage(ctx, message(1, "20"))
	assert.Equal(t, msgUnknown, bot.last(t).Text)
	sub, _ = store.Get(ctx, 1)
	assert.Equal(t, 15, sub.IntervalSeconds)
}

func TestHandler_Cancel(t *testing.T) {
	h, bot, store := newTestHandler(stubFetcher{})
	ctx := context.Background()

	h.handleMessage(ctx, message(1, "/cancelar"))
	assert.Equal(t, msgNothingPending, bot.last(t).Text)

	h.handleMessage(ctx, message(1, "/configurar"))
	h.handleMessage(ctx, message(1, "/cancelar"))
	assert.Equal(t, msgConfigCancel, bot.last(t).Text)
	assert.False(t, h.isAwaiting(1))

	sub, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestHandler_StopAndStatus(t *testing.T) {
	h, bot, _ := newTestHandler(stubFetcher{})
	ctx := context.Background()

	h.handleMessage(ctx, message(1, "/parar"))
	assert.Equal(t, msgNoConfig, bot.last(t).Text)

	h.handleMessage(ctx, message(1, "/estado"))
	assert.Equal(t, msgNoConfig, bot.last(t).Text)

	h.handleMessage(ctx, message(1, "/configurar 10"))
	h.handleMessage(ctx, message(1, "/estado"))
	assert.Contains(t, bot.last(t).Text, "10 segundos")
	assert.Contains(t, bot.last(t).Text, "Activo")

	h.handleMessage(ctx, message(1, "/parar"))
	assert.Equal(t, msgStopSuccess, bot.last(t).Text)

	h.handleMessage(ctx, message(1, "/estado"))
	assert.Equal(t, msgNoConfig, bot.last(t).Text)
}

func TestHandler_Quote(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h, bot, _ := newTestHandler(stubFetcher{quote: domain.Quote{
			BuyPrice:  decimal.RequireFromString("1450.50"),
			SellPrice: decimal.RequireFromString("1500"),
		}})
		h.handleMessage(context.Background(), message(1, "/cotizacion"))

		text := bot.last(t).Text
		assert.Contains(t, text, "$1,450.50")
		assert.Contains(t, text, "$1,500.00")
		assert.Contains(t, text, "12:30 01/05/2024")
	})

	t.Run("fetch error", func(t *testing.T) {
		h, bot, _ := newTestHandler(stubFetcher{err: domain.ErrFetch})
		h.handleMessage(context.Background(), message(1, "/cotizacion"))
		assert.Equal(t, msgQuoteError, bot.last(t).Text)
	})
}

func TestHandler_ResetIsAdminOnly(t *testing.T) {
	h, bot, store := newTestHandler(stubFetcher{})
	ctx := context.Background()

	require.NoError(t, store.PutQuote(ctx, domain.Quote{BuyPrice: decimal.NewFromInt(1), SellPrice: decimal.NewFromInt(2)}))
	require.NoError(t, store.PutCursor(ctx, 5, time.Now()))

	h.handleMessage(ctx, message(5, "/reset"))
	assert.Equal(t, msgUnknown, bot.last(t).Text)
	q, err := store.GetQuote(ctx)
	require.NoError(t, err)
	assert.NotNil(t, q)

	h.handleMessage(ctx, message(adminID, "/reset"))
	assert.Equal(t, msgResetDone, bot.last(t).Text)

	q, err = store.GetQuote(ctx)
	require.NoError(t, err)
	assert.Nil(t, q)
	at, err := store.GetCursor(ctx, 5)
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestHandler_StartStopsOnCancel(t *testing.T) {
	h, bot, _ := newTestHandler(stubFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Start(ctx) }()

	bot.updates <- tgbotapi.Update{Message: message(1, "/help")}
	require.Eventually(t, func() bool {
		bot.mu.Lock()
		defer bot.mu.Unlock()
		return len(bot.sent) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	bot.mu.Lock()
	assert.True(t, bot.stopped)
	bot.mu.Unlock()
}

func TestHandler_StartKeepsChatOrder(t *testing.T) {
	h, bot, store := newTestHandler(stubFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Start(ctx) }()

	// Back to back, as a user typing fast would send them.
	for i := 0; i < 20; i++ {
		chatID := int64(1000 + i)
		bot.updates <- tgbotapi.Update{Message: message(chatID, "/configurar")}
		bot.updates <- tgbotapi.Update{Message: message(chatID, "15")}
	}

	require.Eventually(t, func() bool {
		subs, err := store.ListEnabled(context.Background())
		return err == nil && len(subs) == 20
	}, 2*time.Second, 10*time.Millisecond)

	bot.mu.Lock()
	defer bot.mu.Unlock()
	for _, m := range bot.sent {
		assert.NotEqual(t, msgUnknown, m.Text, "chat %d", m.ChatID)
	}
}

func TestQueueFor(t *testing.T) {
	for _, id := range []int64{0, 1, 7, -1001234567890, 1 << 40} {
		i := queueFor(id, updateWorkers)
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, updateWorkers)
		assert.Equal(t, i, queueFor(id, updateWorkers))
	}
}
