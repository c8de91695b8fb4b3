// Package metrics exposes Prometheus counters for the poll loop and a small
// HTTP server for scraping and liveness checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll cycle results.
const (
	CycleUnchanged   = "unchanged"
	CycleChanged     = "changed"
	CycleBaseline    = "baseline"
	CycleFetchFailed = "fetch_failed"
)

// Delivery results.
const (
	DeliveryOK     = "ok"
	DeliveryFailed = "failed"
)

var (
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dolarbot_poll_cycles_total",
		Help: "Poll cycles by outcome.",
	}, []string{"result"})

	QuoteChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dolarbot_quote_changes_total",
		Help: "Committed quote changes.",
	})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dolarbot_deliveries_total",
		Help: "Notification attempts by outcome.",
	}, []string{"result"})

	CursorWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dolarbot_cursor_write_failures_total",
		Help: "Successful sends whose delivery cursor could not be recorded.",
	})
)
