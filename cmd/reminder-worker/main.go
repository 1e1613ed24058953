package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"budgetbot/internal/amqp"
	"budgetbot/internal/config"
	applog "budgetbot/internal/log"
	"budgetbot/internal/notify"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	level, _ := applog.ParseLevel(cfg.LogLevel)
	logCfg := applog.DefaultConfig()
	logCfg.Level = level
	logCfg.Component = applog.ComponentWorker
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	logger.Info("Starting reminder-worker")

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	tg := notify.NewTelegram(api)

	amqpClient, err := amqp.DialWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 10)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	handle := func(ctx context.Context, msg *amqp.ReminderMessage) error {
		r, err := notify.FromMessage(msg)
		if err != nil {
			// Undeliverable as addressed; acknowledge rather than requeue
			logger.Warn("Dropping malformed reminder", "message_id", msg.ID, "error", err)
			return nil
		}
		if err := tg.Deliver(ctx, r); err != nil {
			if errors.Is(err, notify.ErrUnreachable) {
				logger.Warn("Reminder recipient unreachable", "message_id", msg.ID, "user_id", r.UserID, "error", err)
				return nil
			}
			return err
		}
		return nil
	}

	err = amqpClient.ConsumeReminders(ctx, handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("reminder-worker stopped")
}
