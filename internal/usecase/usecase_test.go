package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
	"github.com/romanzzaa/dolar-rate-bot/internal/infrastructure/memory"
)

var errBoom = errors.New("boom")

// faultyStore wraps the memory store and fails selected operations.
type faultyStore struct {
	*memory.Store
	failGetQuote  bool
	failPutQuote  bool
	failGetCursor bool
	failPutCursor bool
	failList      bool
}

func (f *faultyStore) GetQuote(ctx context.Context) (*domain.Quote, error) {
	if f.failGetQuote {
		return nil, errBoom
	}
	return f.Store.GetQuote(ctx)
}

func (f *faultyStore) PutQuote(ctx context.Context, q domain.Quote) error {
	if f.failPutQuote {
		return errBoom
	}
	return f.Store.PutQuote(ctx, q)
}

func (f *faultyStore) GetCursor(ctx context.Context, id domain.SubscriberID) (time.Time, error) {
	if f.failGetCursor {
		return time.Time{}, errBoom
	}
	return f.Store.GetCursor(ctx, id)
}

func (f *faultyStore) PutCursor(ctx context.Context, id domain.SubscriberID, at time.Time) error {
	if f.failPutCursor {
		return errBoom
	}
	return f.Store.PutCursor(ctx, id, at)
}

func (f *faultyStore) ListEnabled(ctx context.Context) ([]domain.Subscription, error) {
	if f.failList {
		return nil, errBoom
	}
	return f.Store.ListEnabled(ctx)
}

func quote(buy, sell string) domain.Quote {
	return domain.Quote{
		BuyPrice:  decimal.RequireFromString(buy),
		SellPrice: decimal.RequireFromString(sell),
	}
}

func TestChangeDetector_FirstRunInitializesBaseline(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	d := NewChangeDetector(store, nil)

	q := quote("850.00", "870.00")
	res := d.Detect(ctx, q)
	assert.False(t, res.Changed)
	assert.True(t, res.Baseline)

	stored, err := store.GetQuote(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Equal(q))

	// Same quote again: idempotent, no change.
	res = d.Detect(ctx, q)
	assert.False(t, res.Changed)
	assert.False(t, res.Baseline)
}

func TestChangeDetector_ExactEquality(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	d := NewChangeDetector(store, nil)

	d.Detect(ctx, quote("850.00", "870.00"))

	res := d.Detect(ctx, quote("850", "870.0"))
	assert.False(t, res.Changed, "same numeric value with a different scale is not a change")

	res = d.Detect(ctx, quote("850.00", "870.01"))
	require.True(t, res.Changed)
	require.NotNil(t, res.Previous)
	assert.True(t, res.Previous.SellPrice.Equal(decimal.RequireFromString("870")))

	stored, err := store.GetQuote(ctx)
	require.NoError(t, err)
	assert.True(t, stored.SellPrice.Equal(decimal.RequireFromString("870.01")))
}

func TestChangeDetector_TimestampOnlyIsNotAChange(t *testing.T) {
	ctx := context.Background()
	d := NewChangeDetector(memory.NewStore(), nil)

	first := quote("850", "870")
	first.SourceTimestamp = "2024-01-01T10:00:00Z"
	d.Detect(ctx, first)

	second := quote("850", "870")
	second.SourceTimestamp = "2024-01-01T10:05:00Z"
	assert.False(t, d.Detect(ctx, second).Changed)
}

func TestChangeDetector_CommitFailureWithholdsChange(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{Store: memory.NewStore()}
	d := NewChangeDetector(store, nil)

	d.Detect(ctx, quote("850", "870"))

	store.failPutQuote = true
	res := d.Detect(ctx, quote("851", "871"))
	assert.False(t, res.Changed)

	stored, err := store.GetQuote(ctx)
	require.NoError(t, err)
	assert.True(t, stored.Equal(quote("850", "870")), "baseline must stay at the old value")

	// Storage recovered: the same change is reported on the next cycle.
	store.failPutQuote = false
	assert.True(t, d.Detect(ctx, quote("851", "871")).Changed)
}

func TestChangeDetector_UnreadableBaselineActsAsFirstRun(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{Store: memory.NewStore(), failGetQuote: true}
	d := NewChangeDetector(store, nil)

	res := d.Detect(ctx, quote("900", "920"))
	assert.False(t, res.Changed)
	assert.True(t, res.Baseline)

	store.failGetQuote = false
	stored, err := store.GetQuote(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Equal(quote("900", "920")))
}

func TestFanoutScheduler_DueSubscribers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s := NewFanoutScheduler(store, store, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.SetSubscription(ctx, 1, 30)
	require.NoError(t, err)
	_, err = store.SetSubscription(ctx, 2, 30)
	require.NoError(t, err)
	_, err = store.SetSubscription(ctx, 3, 5)
	require.NoError(t, err)
	_, err = store.Disable(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, store.PutCursor(ctx, 1, now.Add(-29*time.Second)))
	require.NoError(t, store.PutCursor(ctx, 2, now.Add(-30*time.Second)))

	due := s.DueSubscribers(ctx, now)
	require.Len(t, due, 1)
	assert.Equal(t, domain.SubscriberID(2), due[0].SubscriberID)
}

func TestFanoutScheduler_NeverSentIsDue(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s := NewFanoutScheduler(store, store, nil)

	_, err := store.SetSubscription(ctx, 7, 60)
	require.NoError(t, err)

	due := s.DueSubscribers(ctx, time.Now())
	require.Len(t, due, 1)
	assert.Equal(t, 60, due[0].IntervalSeconds)
}

func TestFanoutScheduler_Failures(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{Store: memory.NewStore()}
	s := NewFanoutScheduler(store, store, nil)
	now := time.Now()

	_, err := store.SetSubscription(ctx, 1, 60)
	require.NoError(t, err)
	require.NoError(t, store.PutCursor(ctx, 1, now))

	t.Run("unreadable cursor counts as never sent", func(t *testing.T) {
		store.failGetCursor = true
		defer func() { store.failGetCursor = false }()
		assert.Len(t, s.DueSubscribers(ctx, now), 1)
	})

	t.Run("registry failure yields empty set", func(t *testing.T) {
		store.failList = true
		defer func() { store.failList = false }()
		assert.Empty(t, s.DueSubscribers(ctx, now))
	})
}

func TestFanoutScheduler_MarkDelivered(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s := NewFanoutScheduler(store, store, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.SetSubscription(ctx, 1, 10)
	require.NoError(t, err)

	require.NoError(t, s.MarkDelivered(ctx, 1, now))
	at, err := store.GetCursor(ctx, 1)
	require.NoError(t, err)
	assert.True(t, at.Equal(now))

	assert.Empty(t, s.DueSubscribers(ctx, now.Add(9*time.Second)))
	assert.Len(t, s.DueSubscribers(ctx, now.Add(10*time.Second)), 1)

	// Unknown subscriber: no cursor is created.
	require.NoError(t, s.MarkDelivered(ctx, 99, now))
	at, err = store.GetCursor(ctx, 99)
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestFanoutScheduler_MarkDeliveredWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{Store: memory.NewStore(), failPutCursor: true}
	s := NewFanoutScheduler(store, store, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.SetSubscription(ctx, 1, 10)
	require.NoError(t, err)

	err = s.MarkDelivered(ctx, 1, now)
	require.ErrorIs(t, err, errBoom)

	at, err := store.GetCursor(ctx, 1)
	require.NoError(t, err)
	assert.True(t, at.IsZero())
	assert.Len(t, s.DueSubscribers(ctx, now.Add(time.Second)), 1, "unrecorded delivery leaves the subscriber due")
}
