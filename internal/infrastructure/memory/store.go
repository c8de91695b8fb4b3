// Package memory keeps quotes, cursors and subscriptions in process memory.
// Used for local runs without a database and as the reference backend in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
)

var (
	_ domain.QuoteStore           = (*Store)(nil)
	_ domain.SubscriptionRegistry = (*Store)(nil)
)

type Store struct {
	mu      sync.RWMutex
	quote   *domain.Quote
	cursors map[domain.SubscriberID]time.Time
	subs    map[domain.SubscriberID]domain.Subscription
}

func NewStore() *Store {
	return &Store{
		cursors: make(map[domain.SubscriberID]time.Time),
		subs:    make(map[domain.SubscriberID]domain.Subscription),
	}
}

// --- QuoteStore ---

func (s *Store) GetQuote(_ context.Context) (*domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.quote == nil {
		return nil, nil
	}
	q := *s.quote
	return &q, nil
}

func (s *Store) PutQuote(_ context.Context, q domain.Quote) error {
	s.mu.Lock()
	s.quote = &q
	s.mu.Unlock()
	return nil
}

func (s *Store) GetCursor(_ context.Context, id domain.SubscriberID) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[id], nil
}

func (s *Store) PutCursor(_ context.Context, id domain.SubscriberID, at time.Time) error {
	s.mu.Lock()
	s.cursors[id] = at
	s.mu.Unlock()
	return nil
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	s.quote = nil
	s.cursors = make(map[domain.SubscriberID]time.Time)
	s.mu.Unlock()
	return nil
}

// --- SubscriptionRegistry ---

func (s *Store) SetSubscription(_ context.Context, id domain.SubscriberID, intervalSeconds int) (bool, error) {
	if !domain.ValidInterval(intervalSeconds) {
		return false, nil
	}

	s.mu.Lock()
	s.subs[id] = domain.Subscription{SubscriberID: id, IntervalSeconds: intervalSeconds, Enabled: true}
	s.mu.Unlock()
	return true, nil
}

func (s *Store) Disable(_ context.Context, id domain.SubscriberID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return false, nil
	}
	sub.Enabled = false
	s.subs[id] = sub
	return true, nil
}

func (s *Store) Remove(_ context.Context, id domain.SubscriberID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[id]; !ok {
		return false, nil
	}
	delete(s.subs, id)
	return true, nil
}

func (s *Store) Get(_ context.Context, id domain.SubscriberID) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

// ListEnabled returns enabled subscriptions ordered by id.
func (s *Store) ListEnabled(_ context.Context) ([]domain.Subscription, error) {
	s.mu.RLock()
	out := make([]domain.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.Enabled {
			out = append(out, sub)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SubscriberID < out[j].SubscriberID })
	return out, nil
}
