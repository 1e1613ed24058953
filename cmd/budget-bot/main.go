package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"budgetbot/internal/amqp"
	"budgetbot/internal/bot"
	"budgetbot/internal/config"
	ophttp "budgetbot/internal/http"
	applog "budgetbot/internal/log"
	"budgetbot/internal/metrics"
	"budgetbot/internal/notify"
	"budgetbot/internal/scheduler"
	"budgetbot/internal/services"
	"budgetbot/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	level, _ := applog.ParseLevel(cfg.LogLevel)
	logCfg := applog.DefaultConfig()
	logCfg.Level = level
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	logger.Info("Starting budget-bot")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	applyAt, notifyAt, _ := cfg.Schedule()

	metrics.Init()

	// Open the ledger once; every component shares it
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	budget := services.NewBudgetService(repo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Transport readiness gates the scheduler and the readiness probe
	ready := make(chan struct{})
	ops := ophttp.NewServer(":"+cfg.OpsPort, logger, map[string]ophttp.ReadinessCheck{
		"storage": repo.Ping,
		"telegram": func(context.Context) error {
			select {
			case <-ready:
				return nil
			default:
				return errors.New("not connected")
			}
		},
	})
	go func() {
		logger.WithComponent(applog.ComponentOps).Info("Ops server listening", "addr", ops.Addr)
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ops server failed", "error", err)
			stop()
		}
	}()

	api, err := connectTelegram(ctx, cfg.TelegramToken, logger)
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	close(ready)
	logger.Info("Connected to Telegram", "bot", api.Self.UserName)

	tg := notify.NewTelegram(api)

	// Reminders are delivered in process unless a broker is configured
	var notifier notify.Notifier = tg
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.DialWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, delivering reminders directly", "error", err)
		} else {
			defer amqpClient.Close()
			notifier = notify.NewQueue(amqpClient)
			logger.Info("AMQP client initialized - reminders will be delivered by reminder-worker")
		}
	}

	dispatcher := services.NewReminderDispatcher(budget, notifier,
		services.WithConcurrency(cfg.ReminderConcurrency),
		services.WithCurrencyMarker(cfg.CurrencyMarker),
		services.WithFallbackChannel(tg, cfg.ReminderChannelID),
	)

	sched := scheduler.New(cfg.SchedulerTick, repo,
		scheduler.ApplyJob(applyAt, budget),
		scheduler.NotifyJob(notifyAt, dispatcher),
	)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Run(ctx, ready); err != nil {
			logger.Error("Scheduler stopped", "error", err)
		}
	}()
	logger.WithComponent(applog.ComponentScheduler).Info("Scheduler configured",
		"tick", cfg.SchedulerTick,
		"apply_at", applyAt.String(),
		"notify_at", notifyAt.String())

	handler := bot.NewHandler(api, budget,
		bot.WithCurrencyMarker(cfg.CurrencyMarker),
		bot.WithNotifyTime(notifyAt.String()),
		bot.WithRateLimit(cfg.BotRateLimit),
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

loop:
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received")
			break loop
		case upd, ok := <-updates:
			if !ok {
				break loop
			}
			handler.HandleUpdate(ctx, upd)
		}
	}

	api.StopReceivingUpdates()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ops server shutdown failed", "error", err)
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	}
	logger.Info("budget-bot stopped")
}

// connectTelegram retries the initial getMe call so a short network outage
// at boot does not kill the process.
func connectTelegram(ctx context.Context, token string, logger *applog.Logger) (*tgbotapi.BotAPI, error) {
	const attempts = 5
	var lastErr error
	for i := 0; i < attempts; i++ {
		api, err := tgbotapi.NewBotAPI(token)
		if err == nil {
			return api, nil
		}
		lastErr = err
		wait := time.Duration(1<<i) * time.Second
		logger.Warn("Telegram connection failed, retrying", "attempt", i+1, "retry_in", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect after %d attempts: %w", attempts, lastErr)
}

