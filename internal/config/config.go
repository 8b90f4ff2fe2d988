package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings shared by the CLI and the bot.
type Config struct {
	AppDataDir        string
	Workspace         string
	LogLevel          string
	TelegramToken     string
	AllowedUsers      []int64
	ReportTime        string
	TempRetention     time.Duration
	ExpenseWindowDays int
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppDataDir:        strings.TrimSpace(os.Getenv("FINANCE_APP_DATA")),
		Workspace:         strings.TrimSpace(os.Getenv("FINANCE_WORKSPACE")),
		LogLevel:          strings.TrimSpace(os.Getenv("FINANCE_LOG_LEVEL")),
		TelegramToken:     strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		ReportTime:        strings.TrimSpace(os.Getenv("REPORT_TIME")),
		TempRetention:     parseHours(strings.TrimSpace(os.Getenv("TEMP_RETENTION_HOURS"))),
		ExpenseWindowDays: parsePositiveInt(strings.TrimSpace(os.Getenv("EXPENSE_WINDOW_DAYS"))),
	}

	users, err := parseUserIDs(os.Getenv("TELEGRAM_ALLOWED_USERS"))
	if err != nil {
		return cfg, err
	}
	cfg.AllowedUsers = users

	if cfg.AppDataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve app data dir: %w", err)
		}
		cfg.AppDataDir = filepath.Join(base, "finance-workspace")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ReportTime == "" {
		cfg.ReportTime = "20:00"
	}
	if cfg.TempRetention == 0 {
		cfg.TempRetention = 24 * time.Hour
	}
	if cfg.ExpenseWindowDays == 0 {
		cfg.ExpenseWindowDays = 30
	}

	return cfg, nil
}

// RequireTelegram reports a missing bot token.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

// Allowed reports whether a Telegram user may talk to the bot.
// An empty allow-list admits everyone.
func (c Config) Allowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func parseHours(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parsePositiveInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALLOWED_USERS: invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
