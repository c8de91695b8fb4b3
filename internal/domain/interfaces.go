package domain

import (
	"context"
	"time"
)

// QuoteFetcher - single round-trip to the price source, no caching or retry
type QuoteFetcher interface {
	FetchQuote(ctx context.Context) (Quote, error)
}

// Notifier - delivers one formatted message to one subscriber
type Notifier interface {
	Notify(ctx context.Context, id SubscriberID, text string) error
}

// QuoteStore - durable baseline quote and per-subscriber delivery cursors
type QuoteStore interface {
	// GetQuote returns nil, nil when no baseline was stored yet.
	GetQuote(ctx context.Context) (*Quote, error)
	PutQuote(ctx context.Context, q Quote) error

	// GetCursor returns the zero time when the subscriber was never served.
	GetCursor(ctx context.Context, id SubscriberID) (time.Time, error)
	PutCursor(ctx context.Context, id SubscriberID, at time.Time) error

	// Reset clears the baseline and all cursors.
	Reset(ctx context.Context) error
}

// SubscriptionRegistry - durable subscriber -> interval/enabled mapping
type SubscriptionRegistry interface {
	// SetSubscription stores and enables the subscription. Returns false without
	// touching state when the interval is outside [MinIntervalSeconds, MaxIntervalSeconds].
	SetSubscription(ctx context.Context, id SubscriberID, intervalSeconds int) (bool, error)

	// Disable returns false if the subscriber is unknown.
	Disable(ctx context.Context, id SubscriberID) (bool, error)

	// Remove deletes the registry entry. Delivery cursors are kept.
	Remove(ctx context.Context, id SubscriberID) (bool, error)

	// Get returns nil, nil for unknown subscribers.
	Get(ctx context.Context, id SubscriberID) (*Subscription, error)

	ListEnabled(ctx context.Context) ([]Subscription, error)
}
