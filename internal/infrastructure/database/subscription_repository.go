package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
)

var _ domain.SubscriptionRegistry = (*SubscriptionRepository)(nil)

type SubscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) SetSubscription(ctx context.Context, id domain.SubscriberID, intervalSeconds int) (bool, error) {
	if !domain.ValidInterval(intervalSeconds) {
		return false, nil
	}

	query := `
		INSERT INTO subscriptions (subscriber_id, interval_seconds, enabled, updated_at)
		VALUES ($1, $2, TRUE, NOW())
		ON CONFLICT (subscriber_id) DO UPDATE
		SET interval_seconds = EXCLUDED.interval_seconds, enabled = TRUE, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, int64(id), intervalSeconds); err != nil {
		return false, fmt.Errorf("%w: set subscription %d: %w", domain.ErrPersistence, id, err)
	}
	return true, nil
}

func (r *SubscriptionRepository) Disable(ctx context.Context, id domain.SubscriberID) (bool, error) {
	query := `UPDATE subscriptions SET enabled = FALSE, updated_at = NOW() WHERE subscriber_id = $1`
	return r.execAffecting(ctx, query, id, "disable")
}

func (r *SubscriptionRepository) Remove(ctx context.Context, id domain.SubscriberID) (bool, error) {
	query := `DELETE FROM subscriptions WHERE subscriber_id = $1`
	return r.execAffecting(ctx, query, id, "remove")
}

func (r *SubscriptionRepository) Get(ctx context.Context, id domain.SubscriberID) (*domain.Subscription, error) {
	query := `SELECT subscriber_id, interval_seconds, enabled FROM subscriptions WHERE subscriber_id = $1`

	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get subscription %d: %w", domain.ErrPersistence, id, err)
	}
	return sub, nil
}

func (r *SubscriptionRepository) ListEnabled(ctx context.Context) ([]domain.Subscription, error) {
	query := `
		SELECT subscriber_id, interval_seconds, enabled
		FROM subscriptions
		WHERE enabled = TRUE
		ORDER BY subscriber_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list subscriptions: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan subscription: %w", domain.ErrPersistence, err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list subscriptions: %w", domain.ErrPersistence, err)
	}
	return subs, nil
}

// Helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var (
		sub domain.Subscription
		id  int64
	)
	if err := row.Scan(&id, &sub.IntervalSeconds, &sub.Enabled); err != nil {
		return nil, err
	}
	sub.SubscriberID = domain.SubscriberID(id)
	return &sub, nil
}

func (r *SubscriptionRepository) execAffecting(ctx context.Context, query string, id domain.SubscriberID, op string) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, int64(id))
	if err != nil {
		return false, fmt.Errorf("%w: %s subscription %d: %w", domain.ErrPersistence, op, id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %s subscription %d: %w", domain.ErrPersistence, op, id, err)
	}
	return rows > 0, nil
}
