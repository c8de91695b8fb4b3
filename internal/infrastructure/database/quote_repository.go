package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
)

var _ domain.QuoteStore = (*QuoteRepository)(nil)

// QuoteRepository - baseline quote (single row, id = 1) and delivery cursors
type QuoteRepository struct {
	db *DB
}

func NewQuoteRepository(db *DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

func (r *QuoteRepository) GetQuote(ctx context.Context) (*domain.Quote, error) {
	query := `SELECT buy_price, sell_price, source_timestamp FROM quote_baseline WHERE id = 1`

	q := &domain.Quote{}
	err := r.db.QueryRowContext(ctx, query).Scan(&q.BuyPrice, &q.SellPrice, &q.SourceTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get quote: %w", domain.ErrPersistence, err)
	}
	return q, nil
}

func (r *QuoteRepository) PutQuote(ctx context.Context, q domain.Quote) error {
	query := `
		INSERT INTO quote_baseline (id, buy_price, sell_price, source_timestamp, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET buy_price = EXCLUDED.buy_price,
		    sell_price = EXCLUDED.sell_price,
		    source_timestamp = EXCLUDED.source_timestamp,
		    updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, q.BuyPrice, q.SellPrice, q.SourceTimestamp); err != nil {
		return fmt.Errorf("%w: put quote: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (r *QuoteRepository) GetCursor(ctx context.Context, id domain.SubscriberID) (time.Time, error) {
	query := `SELECT last_sent_at FROM delivery_cursors WHERE subscriber_id = $1`

	var at time.Time
	err := r.db.QueryRowContext(ctx, query, int64(id)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: get cursor %d: %w", domain.ErrPersistence, id, err)
	}
	return at, nil
}

func (r *QuoteRepository) PutCursor(ctx context.Context, id domain.SubscriberID, at time.Time) error {
	query := `
		INSERT INTO delivery_cursors (subscriber_id, last_sent_at)
		VALUES ($1, $2)
		ON CONFLICT (subscriber_id) DO UPDATE SET last_sent_at = EXCLUDED.last_sent_at
	`
	if _, err := r.db.ExecContext(ctx, query, int64(id), at); err != nil {
		return fmt.Errorf("%w: put cursor %d: %w", domain.ErrPersistence, id, err)
	}
	return nil
}

// Reset clears the baseline and every cursor in one transaction.
func (r *QuoteRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin reset: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quote_baseline`); err != nil {
		return fmt.Errorf("%w: reset quote: %w", domain.ErrPersistence, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM delivery_cursors`); err != nil {
		return fmt.Errorf("%w: reset cursors: %w", domain.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit reset: %w", domain.ErrPersistence, err)
	}
	return nil
}
