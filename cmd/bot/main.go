package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"github.com/romanzzaa/dolar-rate-bot/internal/bot"
	"github.com/romanzzaa/dolar-rate-bot/internal/config"
	"github.com/romanzzaa/dolar-rate-bot/internal/infrastructure/dolarapi"
	"github.com/romanzzaa/dolar-rate-bot/internal/infrastructure/storage"
	"github.com/romanzzaa/dolar-rate-bot/internal/infrastructure/telegram"
	"github.com/romanzzaa/dolar-rate-bot/internal/metrics"
	"github.com/romanzzaa/dolar-rate-bot/internal/usecase"
	"github.com/romanzzaa/dolar-rate-bot/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer backend.Close()

	source := dolarapi.NewClient(cfg.Source.URL, cfg.Source.Timeout)

	tgBot, err := telegram.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.Timeout)
	if err != nil {
		logger.Error("failed to init telegram bot", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tgBot.Debug = false
	logger.Info("Telegram bot authorized", slog.String("username", tgBot.Self.UserName))

	notifier := telegram.NewNotifier(tgBot)
	detector := usecase.NewChangeDetector(backend.Quotes, logger)
	scheduler := usecase.NewFanoutScheduler(backend.Registry, backend.Quotes, logger)

	manager := worker.NewManager(worker.Config{
		Interval:            cfg.Poller.Interval,
		FetchTimeout:        cfg.Source.Timeout,
		SendTimeout:         cfg.Telegram.Timeout,
		DispatchConcurrency: cfg.Poller.DispatchConcurrency,
	}, source, detector, scheduler, notifier, logger)

	botHandler := bot.NewHandler(tgBot, backend.Registry, backend.Quotes, source, cfg.Telegram.AdminID, logger)

	logger.Info("Starting bot...",
		slog.String("env", cfg.AppEnv),
		slog.String("store", backend.Name),
		slog.Duration("poll_interval", cfg.Poller.Interval))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(gctx) })
	g.Go(func() error { return botHandler.Start(gctx) })
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Addr, logger) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("bot stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Bot stopped gracefully")
}
