package usecase

import (
	"context"
	"log/slog"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
)

// ChangeDetector compares fresh quotes with the persisted baseline.
type ChangeDetector struct {
	store  domain.QuoteStore
	logger *slog.Logger
}

func NewChangeDetector(store domain.QuoteStore, logger *slog.Logger) *ChangeDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeDetector{
		store:  store,
		logger: logger.With("component", "change_detector"),
	}
}

// Detect never fails. The baseline is committed before Changed is reported;
// if that write fails the change is withheld and will be seen again next cycle.
//
//   - no baseline (or unreadable): store current, report Unchanged with Baseline=true
//   - equal prices: Unchanged, no write
//   - different prices: store current, report Changed with the previous value
func (d *ChangeDetector) Detect(ctx context.Context, current domain.Quote) domain.Detection {
	previous, err := d.store.GetQuote(ctx)
	if err != nil {
		d.logger.Warn("baseline unreadable, treating as first run", slog.String("err", err.Error()))
		previous = nil
	}

	if previous == nil {
		if err := d.store.PutQuote(ctx, current); err != nil {
			d.logger.Error("failed to store initial baseline", slog.String("err", err.Error()))
		} else {
			d.logger.Info("baseline initialized, monitoring started",
				slog.String("buy", current.BuyPrice.String()),
				slog.String("sell", current.SellPrice.String()))
		}
		return domain.Detection{Baseline: true}
	}

	if previous.Equal(current) {
		return domain.Detection{}
	}

	if err := d.store.PutQuote(ctx, current); err != nil {
		d.logger.Error("change detected but baseline commit failed, skipping fan-out",
			slog.String("err", err.Error()))
		return domain.Detection{}
	}

	d.logger.Info("quote changed",
		slog.String("buy_from", previous.BuyPrice.String()),
		slog.String("buy_to", current.BuyPrice.String()),
		slog.String("sell_from", previous.SellPrice.String()),
		slog.String("sell_to", current.SellPrice.String()))

	return domain.Detection{Changed: true, Previous: previous}
}
