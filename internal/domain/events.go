package domain

import "time"

// QuoteChangedEvent - emitted by the poll loop once the new baseline is committed
type QuoteChangedEvent struct {
	CycleID  string
	Current  Quote
	Previous *Quote
	Time     time.Time
}

// Delivery - one pending send produced by the fan-out step
type Delivery struct {
	Subscription Subscription
	Text         string
}
