package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "budgetbot/internal/log"
	"budgetbot/internal/scheduler"
)

type Config struct {
	// Chat transport
	TelegramToken string

	// Database
	SQLiteDBPath string

	// Ops HTTP server
	OpsPort string

	// AMQP, empty URL keeps reminders in-process
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Scheduler
	SchedulerTick time.Duration
	ApplyAt       string
	NotifyAt      string

	// Reminders
	ReminderConcurrency int
	ReminderChannelID   string
	CurrencyMarker      string

	// Commands per user per minute, 0 disables
	BotRateLimit int

	LogLevel string
}

func Load() *Config {
	return &Config{
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/budget.db"),
		OpsPort:       getEnv("OPS_PORT", "8082"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budget"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "reminders"),

		SchedulerTick: getEnvDuration("SCHEDULER_TICK", time.Minute),
		ApplyAt:       getEnv("APPLY_AT", "00:05"),
		NotifyAt:      getEnv("NOTIFY_AT", "08:00"),

		ReminderConcurrency: getEnvInt("REMINDER_CONCURRENCY", 4),
		ReminderChannelID:   getEnv("REMINDER_CHANNEL_ID", ""),
		CurrencyMarker:      getEnv("CURRENCY_MARKER", "€"),

		BotRateLimit: getEnvInt("BOT_RATE_LIMIT", 30),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.TelegramToken) == "" {
		errors = append(errors, "TELEGRAM_BOT_TOKEN is required")
	}

	if port, err := strconv.Atoi(c.OpsPort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ops port '%s': must be a number", c.OpsPort))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid ops port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SchedulerTick < time.Second {
		errors = append(errors, fmt.Sprintf("invalid scheduler tick %v: must be at least 1 second", c.SchedulerTick))
	} else if c.SchedulerTick > time.Minute {
		// Triggers match on the exact minute, so a longer tick can miss them
		errors = append(errors, fmt.Sprintf("invalid scheduler tick %v: must be at most 1 minute", c.SchedulerTick))
	}

	applyAt, applyErr := scheduler.ParseTimeOfDay(c.ApplyAt)
	if applyErr != nil {
		errors = append(errors, fmt.Sprintf("invalid APPLY_AT '%s': %v", c.ApplyAt, applyErr))
	}
	notifyAt, notifyErr := scheduler.ParseTimeOfDay(c.NotifyAt)
	if notifyErr != nil {
		errors = append(errors, fmt.Sprintf("invalid NOTIFY_AT '%s': %v", c.NotifyAt, notifyErr))
	}
	if applyErr == nil && notifyErr == nil && applyAt == notifyAt {
		errors = append(errors, fmt.Sprintf("APPLY_AT and NOTIFY_AT must differ, both are %s", applyAt))
	}

	if c.ReminderConcurrency < 1 || c.ReminderConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid reminder concurrency %d: must be between 1 and 64", c.ReminderConcurrency))
	}

	if c.BotRateLimit < 0 || c.BotRateLimit > 600 {
		errors = append(errors, fmt.Sprintf("invalid bot rate limit %d: must be between 0 and 600", c.BotRateLimit))
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid LOG_LEVEL: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks only what the reminder worker needs: the chat
// transport and a broker to consume from.
func (c *Config) ValidateWorker() error {
	var errors []string
	if strings.TrimSpace(c.TelegramToken) == "" {
		errors = append(errors, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the reminder worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Schedule returns the parsed apply and notify trigger times. Call after
// Validate.
func (c *Config) Schedule() (applyAt, notifyAt scheduler.TimeOfDay, err error) {
	if applyAt, err = scheduler.ParseTimeOfDay(c.ApplyAt); err != nil {
		return
	}
	notifyAt, err = scheduler.ParseTimeOfDay(c.NotifyAt)
	return
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
