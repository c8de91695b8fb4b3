// Package storage opens the configured persistence backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/romanzzaa/dolar-rate-bot/internal/config"
	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
	"github.com/romanzzaa/dolar-rate-bot/internal/infrastructure/database"
	"github.com/romanzzaa/dolar-rate-bot/internal/infrastructure/memory"
	"github.com/romanzzaa/dolar-rate-bot/internal/infrastructure/redisstore"
)

// Backend bundles the two stores with the handle that owns them.
type Backend struct {
	Name     string
	Quotes   domain.QuoteStore
	Registry domain.SubscriptionRegistry

	close func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := database.NewConnection(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("storage ready", slog.String("backend", cfg.Store.Backend), slog.String("host", cfg.Database.Host))
		return &Backend{
			Name:     cfg.Store.Backend,
			Quotes:   database.NewQuoteRepository(db),
			Registry: database.NewSubscriptionRepository(db),
			close:    db.Close,
		}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := redisstore.NewStore(client, cfg.Redis.Prefix)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		logger.Info("storage ready", slog.String("backend", cfg.Store.Backend), slog.String("addr", cfg.Redis.Addr))
		return &Backend{
			Name:     cfg.Store.Backend,
			Quotes:   store,
			Registry: store,
			close:    store.Close,
		}, nil

	case config.BackendMemory:
		logger.Warn("storage is in-memory, state is lost on restart")
		store := memory.NewStore()
		return &Backend{Name: cfg.Store.Backend, Quotes: store, Registry: store}, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
