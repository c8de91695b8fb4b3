// Command seeder - maintenance for the configured store.
//
//	seeder -subscribe 12345:30   seed a subscription (local env only)
//	seeder -reset                clear the quote baseline and all delivery cursors
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"

	"github.com/romanzzaa/dolar-rate-bot/internal/config"
	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
	"github.com/romanzzaa/dolar-rate-bot/internal/infrastructure/storage"
)

func main() {
	subscribe := flag.String("subscribe", "", "seed a subscription, format <chat_id>:<seconds>")
	reset := flag.Bool("reset", false, "clear quote baseline and delivery cursors")
	flag.Parse()

	if *subscribe == "" && !*reset {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadStorageConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Storage error: %v", err)
	}
	defer backend.Close()

	if *reset {
		if err := backend.Quotes.Reset(ctx); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		logger.Info("baseline and cursors cleared", slog.String("store", backend.Name))
	}

	if *subscribe != "" {
		if !cfg.IsLocal() {
			log.Fatal("Seeding subscriptions is allowed only in local environment")
		}
		id, seconds, err := parseSubscription(*subscribe)
		if err != nil {
			log.Fatalf("Invalid -subscribe: %v", err)
		}
		ok, err := backend.Registry.SetSubscription(ctx, id, seconds)
		if err != nil {
			log.Fatalf("Failed to seed subscription: %v", err)
		}
		if !ok {
			log.Fatalf("Interval %d outside [%d, %d]", seconds, domain.MinIntervalSeconds, domain.MaxIntervalSeconds)
		}
		logger.Info("subscription seeded",
			slog.Int64("subscriber_id", int64(id)),
			slog.Int("interval_seconds", seconds))
	}
}

func parseSubscription(s string) (domain.SubscriberID, int, error) {
	idPart, secPart, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, errors.New("expected <chat_id>:<seconds>")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("chat id: %w", err)
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(secPart))
	if err != nil {
		return 0, 0, fmt.Errorf("seconds: %w", err)
	}
	return domain.SubscriberID(id), seconds, nil
}
