package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
	"github.com/romanzzaa/dolar-rate-bot/internal/metrics"
	"github.com/romanzzaa/dolar-rate-bot/internal/usecase"
)

// Config - poll loop settings
type Config struct {
	Interval            time.Duration // source poll cadence
	FetchTimeout        time.Duration
	SendTimeout         time.Duration // per subscriber
	DispatchConcurrency int
}

func DefaultConfig() Config {
	return Config{
		Interval:            5 * time.Second,
		FetchTimeout:        10 * time.Second,
		SendTimeout:         10 * time.Second,
		DispatchConcurrency: 8,
	}
}

// CycleResult - what one poll cycle did
type CycleResult struct {
	CycleID   string
	Outcome   string // one of the metrics.Cycle* values
	Due       int
	Delivered int
	Failed    int
}

// Manager - the poll loop: fetch -> detect -> dispatch, once per tick
type Manager struct {
	cfg       Config
	fetcher   domain.QuoteFetcher
	detector  *usecase.ChangeDetector
	scheduler *usecase.FanoutScheduler
	notifier  domain.Notifier
	logger    *slog.Logger

	now func() time.Time
}

func NewManager(
	cfg Config,
	fetcher domain.QuoteFetcher,
	detector *usecase.ChangeDetector,
	scheduler *usecase.FanoutScheduler,
	notifier domain.Notifier,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaults.SendTimeout
	}
	if cfg.DispatchConcurrency < 1 {
		cfg.DispatchConcurrency = 1
	}
	return &Manager{
		cfg:       cfg,
		fetcher:   fetcher,
		detector:  detector,
		scheduler: scheduler,
		notifier:  notifier,
		logger:    logger.With("component", "poll_loop"),
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled. A cycle already in progress is allowed to
// finish; cancellation only prevents the next one.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("poll loop started",
		slog.Duration("interval", m.cfg.Interval),
		slog.Int("dispatch_concurrency", m.cfg.DispatchConcurrency))

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	m.runCycle(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("poll loop stopped")
			return nil
		case <-ticker.C:
			m.runCycle(context.WithoutCancel(ctx))
		}
	}
}

func (m *Manager) runCycle(ctx context.Context) CycleResult {
	res := CycleResult{CycleID: uuid.NewString()}
	log := m.logger.With(slog.String("cycle_id", res.CycleID))

	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	current, err := m.fetcher.FetchQuote(fetchCtx)
	cancel()
	if err != nil {
		log.Warn("fetch failed, skipping cycle", slog.String("err", err.Error()))
		res.Outcome = metrics.CycleFetchFailed
		metrics.PollCycles.WithLabelValues(res.Outcome).Inc()
		return res
	}

	det := m.detector.Detect(ctx, current)
	switch {
	case det.Baseline:
		res.Outcome = metrics.CycleBaseline
	case !det.Changed:
		res.Outcome = metrics.CycleUnchanged
	default:
		res.Outcome = metrics.CycleChanged
		metrics.QuoteChanges.Inc()
	}
	metrics.PollCycles.WithLabelValues(res.Outcome).Inc()
	if !det.Changed {
		return res
	}

	now := m.now()
	event := domain.QuoteChangedEvent{
		CycleID:  res.CycleID,
		Current:  current,
		Previous: det.Previous,
		Time:     now,
	}
	text := domain.FormatChange(event)

	due := m.scheduler.DueSubscribers(ctx, now)
	res.Due = len(due)
	if len(due) == 0 {
		log.Info("change detected, no subscriber due")
		return res
	}

	var delivered, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(m.cfg.DispatchConcurrency)

	for _, sub := range due {
		d := domain.Delivery{Subscription: sub, Text: text}
		g.Go(func() error {
			if m.deliver(ctx, log, d, now) {
				delivered.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Delivered = int(delivered.Load())
	res.Failed = int(failed.Load())
	log.Info("dispatch finished",
		slog.Int("due", res.Due),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed))
	return res
}

// deliver sends one notification and records the cursor only on success.
func (m *Manager) deliver(ctx context.Context, log *slog.Logger, d domain.Delivery, now time.Time) bool {
	id := d.Subscription.SubscriberID

	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	err := m.notifier.Notify(sendCtx, id, d.Text)
	cancel()
	if err != nil {
		log.Warn("send failed",
			slog.Int64("subscriber_id", int64(id)),
			slog.String("err", err.Error()))
		metrics.Deliveries.WithLabelValues(metrics.DeliveryFailed).Inc()
		return false
	}
	metrics.Deliveries.WithLabelValues(metrics.DeliveryOK).Inc()

	if err := m.scheduler.MarkDelivered(ctx, id, now); err != nil {
		log.Error("delivered but cursor not recorded, a duplicate may follow",
			slog.Int64("subscriber_id", int64(id)),
			slog.String("err", err.Error()))
		metrics.CursorWriteFailures.Inc()
	}
	return true
}
