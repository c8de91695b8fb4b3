package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
)

// FanoutScheduler decides which subscribers may be notified now and records
// successful deliveries. Cursor access for one subscriber is serialized; different
// subscribers never share a lock.
type FanoutScheduler struct {
	registry domain.SubscriptionRegistry
	cursors  domain.QuoteStore
	logger   *slog.Logger

	locks sync.Map // domain.SubscriberID -> *sync.Mutex
}

func NewFanoutScheduler(registry domain.SubscriptionRegistry, cursors domain.QuoteStore, logger *slog.Logger) *FanoutScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanoutScheduler{
		registry: registry,
		cursors:  cursors,
		logger:   logger.With("component", "fanout_scheduler"),
	}
}

// DueSubscribers returns enabled subscriptions whose interval has elapsed since
// their last delivery. Order is not significant. A registry failure yields an
// empty set; an unreadable cursor counts as "never sent".
func (s *FanoutScheduler) DueSubscribers(ctx context.Context, now time.Time) []domain.Subscription {
	subs, err := s.registry.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("failed to list subscriptions", slog.String("err", err.Error()))
		return nil
	}

	var due []domain.Subscription
	for _, sub := range subs {
		if !sub.Enabled {
			continue
		}
		if sub.IsDue(s.lastSent(ctx, sub.SubscriberID), now) {
			due = append(due, sub)
		}
	}
	return due
}

// MarkDelivered records now as the last delivery time. It is a no-op for
// subscribers no longer in the registry. The returned error is a cursor write
// failure; the caller should log it, the subscriber may get a duplicate later.
func (s *FanoutScheduler) MarkDelivered(ctx context.Context, id domain.SubscriberID, now time.Time) error {
	sub, err := s.registry.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup subscriber %d: %w", id, err)
	}
	if sub == nil {
		s.logger.Debug("subscriber left the registry, cursor not written", slog.Int64("subscriber_id", int64(id)))
		return nil
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	return s.cursors.PutCursor(ctx, id, now)
}

func (s *FanoutScheduler) lastSent(ctx context.Context, id domain.SubscriberID) time.Time {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	at, err := s.cursors.GetCursor(ctx, id)
	if err != nil {
		s.logger.Warn("cursor unreadable, treating as never sent",
			slog.Int64("subscriber_id", int64(id)),
			slog.String("err", err.Error()))
		return time.Time{}
	}
	return at
}

func (s *FanoutScheduler) lockFor(id domain.SubscriberID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
