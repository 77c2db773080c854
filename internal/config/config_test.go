package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/timetable")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("REMINDER_INTERVAL", "")
	t.Setenv("DEFAULT_DAYS", "")
	t.Setenv("BOT_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default HTTP_ADDR, got %s", cfg.HTTPAddr)
	}
	if cfg.ReminderInterval != time.Hour {
		t.Fatalf("expected 1h reminder interval, got %s", cfg.ReminderInterval)
	}
	if cfg.DefaultDays != 5 || cfg.DefaultSessions != 5 {
		t.Fatalf("expected 5x5 default grid, got %dx%d", cfg.DefaultDays, cfg.DefaultSessions)
	}
	if cfg.BotToken != "" {
		t.Fatalf("expected telegram disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("HTTP_ADDR", ":18080")
	t.Setenv("ENV", "prod")
	t.Setenv("REMINDER_INTERVAL", "15m")
	t.Setenv("DB_TIMEOUT", "2s")
	t.Setenv("DEFAULT_SESSIONS", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":18080" || cfg.Env != "prod" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ReminderInterval != 15*time.Minute || cfg.DBTimeout != 2*time.Second {
		t.Fatalf("durations not applied: %s %s", cfg.ReminderInterval, cfg.DBTimeout)
	}
	if cfg.DefaultSessions != 8 {
		t.Fatalf("expected 8 sessions, got %d", cfg.DefaultSessions)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing_database_url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for empty DATABASE_URL")
		}
	})
	t.Run("bad_duration", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://x")
		t.Setenv("REMINDER_INTERVAL", "soon")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for bad duration")
		}
	})
	t.Run("bad_int", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://x")
		t.Setenv("DEFAULT_DAYS", "five")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for bad int")
		}
	})
}
