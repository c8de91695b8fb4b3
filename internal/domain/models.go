package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// --- Constants ---

const (
	MinIntervalSeconds = 5
	MaxIntervalSeconds = 60
)

// SubscriberID - chat id of the recipient (Telegram user or group)
type SubscriberID int64

// --- Entities ---

// Quote - snapshot of the buy/sell price pair returned by the source
type Quote struct {
	BuyPrice        decimal.Decimal
	SellPrice       decimal.Decimal
	SourceTimestamp string // opaque, as reported by the source
}

// Equal compares prices only. SourceTimestamp is ignored: a refreshed
// timestamp with the same prices is not a change.
func (q Quote) Equal(other Quote) bool {
	return q.BuyPrice.Equal(other.BuyPrice) && q.SellPrice.Equal(other.SellPrice)
}

// Subscription - delivery settings of one subscriber
type Subscription struct {
	SubscriberID    SubscriberID
	IntervalSeconds int
	Enabled         bool
}

// Interval returns the minimum delay between two deliveries.
func (s Subscription) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// IsDue reports whether enough time has passed since lastSentAt.
// A zero lastSentAt means "never sent".
func (s Subscription) IsDue(lastSentAt, now time.Time) bool {
	if lastSentAt.IsZero() {
		return true
	}
	return now.Sub(lastSentAt) >= s.Interval()
}

// ValidInterval checks the allowed range, inclusive on both ends.
func ValidInterval(seconds int) bool {
	return seconds >= MinIntervalSeconds && seconds <= MaxIntervalSeconds
}

// --- Value Objects ---

// Detection - result of comparing a fresh quote with the stored baseline
type Detection struct {
	Changed  bool
	Previous *Quote // set only when Changed
	Baseline bool   // true when this observation initialized the baseline
}
