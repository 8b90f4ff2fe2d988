package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FINANCE_APP_DATA", dir)
	t.Setenv("FINANCE_WORKSPACE", "")
	t.Setenv("FINANCE_LOG_LEVEL", "")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("TELEGRAM_ALLOWED_USERS", "")
	t.Setenv("REPORT_TIME", "")
	t.Setenv("TEMP_RETENTION_HOURS", "")
	t.Setenv("EXPENSE_WINDOW_DAYS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Config{
		AppDataDir:        dir,
		LogLevel:          "info",
		ReportTime:        "20:00",
		TempRetention:     24 * time.Hour,
		ExpenseWindowDays: 30,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.RequireTelegram(); err == nil {
		t.Error("expected RequireTelegram to fail without a token")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FINANCE_APP_DATA", "/data")
	t.Setenv("FINANCE_WORKSPACE", "/home/ana/Finanzas")
	t.Setenv("FINANCE_LOG_LEVEL", "debug")
	t.Setenv("TELEGRAM_TOKEN", " token ")
	t.Setenv("TELEGRAM_ALLOWED_USERS", "12, 34")
	t.Setenv("REPORT_TIME", "07:30")
	t.Setenv("TEMP_RETENTION_HOURS", "6")
	t.Setenv("EXPENSE_WINDOW_DAYS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Config{
		AppDataDir:        "/data",
		Workspace:         "/home/ana/Finanzas",
		LogLevel:          "debug",
		TelegramToken:     "token",
		AllowedUsers:      []int64{12, 34},
		ReportTime:        "07:30",
		TempRetention:     6 * time.Hour,
		ExpenseWindowDays: 7,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Allowed(34) || cfg.Allowed(56) {
		t.Error("allow-list not applied")
	}
}

func TestLoad_BadUserID(t *testing.T) {
	t.Setenv("FINANCE_APP_DATA", t.TempDir())
	t.Setenv("TELEGRAM_ALLOWED_USERS", "12,abc")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a non-numeric user id")
	}
}

func TestAllowed_EmptyListAdmitsEveryone(t *testing.T) {
	if !(Config{}).Allowed(42) {
		t.Error("empty allow-list must admit any user")
	}
}
