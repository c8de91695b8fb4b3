// Package redisstore implements QuoteStore and SubscriptionRegistry on Redis.
//
// Layout (all keys under a configurable prefix):
//
//	<prefix>:quote          hash  buy, sell, source_ts
//	<prefix>:cursors        hash  subscriber id -> unix seconds (float)
//	<prefix>:sub:<id>       hash  interval, enabled
//	<prefix>:subs           set   subscriber ids present in the registry
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
)

var (
	_ domain.QuoteStore           = (*Store)(nil)
	_ domain.SubscriptionRegistry = (*Store)(nil)
)

// disableScript flips the enabled flag only for known subscribers.
var disableScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'enabled', '0')
return 1
`)

// removeScript drops the subscription hash and its registry membership together.
var removeScript = redis.NewScript(`
local removed = redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return removed
`)

type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "dolarbot"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) quoteKey() string   { return s.prefix + ":quote" }
func (s *Store) cursorsKey() string { return s.prefix + ":cursors" }
func (s *Store) subsKey() string    { return s.prefix + ":subs" }

func (s *Store) subKey(id domain.SubscriberID) string {
	return fmt.Sprintf("%s:sub:%d", s.prefix, id)
}

// --- QuoteStore ---

func (s *Store) GetQuote(ctx context.Context) (*domain.Quote, error) {
	fields, err := s.client.HGetAll(ctx, s.quoteKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: get quote: %w", domain.ErrPersistence, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	buy, err := decimal.NewFromString(fields["buy"])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt buy price %q: %w", domain.ErrPersistence, fields["buy"], err)
	}
	sell, err := decimal.NewFromString(fields["sell"])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt sell price %q: %w", domain.ErrPersistence, fields["sell"], err)
	}

	return &domain.Quote{BuyPrice: buy, SellPrice: sell, SourceTimestamp: fields["source_ts"]}, nil
}

func (s *Store) PutQuote(ctx context.Context, q domain.Quote) error {
	err := s.client.HSet(ctx, s.quoteKey(),
		"buy", q.BuyPrice.StringFixed(2),
		"sell", q.SellPrice.StringFixed(2),
		"source_ts", q.SourceTimestamp,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: put quote: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (s *Store) GetCursor(ctx context.Context, id domain.SubscriberID) (time.Time, error) {
	raw, err := s.client.HGet(ctx, s.cursorsKey(), strconv.FormatInt(int64(id), 10)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: get cursor %d: %w", domain.ErrPersistence, id, err)
	}

	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: corrupt cursor %d %q: %w", domain.ErrPersistence, id, raw, err)
	}
	return fromUnixSeconds(secs), nil
}

func (s *Store) PutCursor(ctx context.Context, id domain.SubscriberID, at time.Time) error {
	err := s.client.HSet(ctx, s.cursorsKey(), strconv.FormatInt(int64(id), 10), toUnixSeconds(at)).Err()
	if err != nil {
		return fmt.Errorf("%w: put cursor %d: %w", domain.ErrPersistence, id, err)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.quoteKey(), s.cursorsKey()).Err(); err != nil {
		return fmt.Errorf("%w: reset: %w", domain.ErrPersistence, err)
	}
	return nil
}

// --- SubscriptionRegistry ---

func (s *Store) SetSubscription(ctx context.Context, id domain.SubscriberID, intervalSeconds int) (bool, error) {
	if !domain.ValidInterval(intervalSeconds) {
		return false, nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.subKey(id), "interval", intervalSeconds, "enabled", "1")
		pipe.SAdd(ctx, s.subsKey(), int64(id))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: set subscription %d: %w", domain.ErrPersistence, id, err)
	}
	return true, nil
}

func (s *Store) Disable(ctx context.Context, id domain.SubscriberID) (bool, error) {
	n, err := disableScript.Run(ctx, s.client, []string{s.subKey(id)}).Int()
	if err != nil {
		return false, fmt.Errorf("%w: disable subscription %d: %w", domain.ErrPersistence, id, err)
	}
	return n == 1, nil
}

func (s *Store) Remove(ctx context.Context, id domain.SubscriberID) (bool, error) {
	n, err := removeScript.Run(ctx, s.client, []string{s.subKey(id), s.subsKey()}, int64(id)).Int()
	if err != nil {
		return false, fmt.Errorf("%w: remove subscription %d: %w", domain.ErrPersistence, id, err)
	}
	return n > 0, nil
}

func (s *Store) Get(ctx context.Context, id domain.SubscriberID) (*domain.Subscription, error) {
	fields, err := s.client.HGetAll(ctx, s.subKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: get subscription %d: %w", domain.ErrPersistence, id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	sub, err := parseSubscription(id, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return sub, nil
}

// ListEnabled scans the registry set and loads every entry in one pipeline.
// Entries that vanished or fail to parse are skipped.
func (s *Store) ListEnabled(ctx context.Context) ([]domain.Subscription, error) {
	ids, err := s.client.SMembers(ctx, s.subsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list subscriptions: %w", domain.ErrPersistence, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	parsed := make([]domain.SubscriberID, 0, len(ids))
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, raw := range ids {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			id := domain.SubscriberID(n)
			parsed = append(parsed, id)
			cmds = append(cmds, pipe.HGetAll(ctx, s.subKey(id)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load subscriptions: %w", domain.ErrPersistence, err)
	}

	var subs []domain.Subscription
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		sub, err := parseSubscription(parsed[i], fields)
		if err != nil || !sub.Enabled {
			continue
		}
		subs = append(subs, *sub)
	}
	return subs, nil
}

// Helpers

func parseSubscription(id domain.SubscriberID, fields map[string]string) (*domain.Subscription, error) {
	interval, err := strconv.Atoi(fields["interval"])
	if err != nil {
		return nil, fmt.Errorf("corrupt interval for %d: %w", id, err)
	}
	return &domain.Subscription{
		SubscriberID:    id,
		IntervalSeconds: interval,
		Enabled:         fields["enabled"] == "1",
	}, nil
}

func toUnixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

func fromUnixSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond))
}
