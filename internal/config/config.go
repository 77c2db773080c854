package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL      string
	HTTPAddr         string
	LogLevel         string
	Env              string // dev|prod
	SentryDSN        string
	Location         *time.Location
	BotToken         string // empty disables Telegram notifications
	ReminderInterval time.Duration
	DBTimeout        time.Duration
	DefaultDays      int
	DefaultSessions  int
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Europe/Moscow")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("required env DATABASE_URL is empty")
	}
	reminder, err := getenvDuration("REMINDER_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	dbTimeout, err := getenvDuration("DB_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	days, err := getenvInt("DEFAULT_DAYS", 5)
	if err != nil {
		return nil, err
	}
	sessions, err := getenvInt("DEFAULT_SESSIONS", 5)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:      dsn,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		Env:              getenv("ENV", "dev"),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		Location:         loc,
		BotToken:         os.Getenv("BOT_TOKEN"),
		ReminderInterval: reminder,
		DBTimeout:        dbTimeout,
		DefaultDays:      days,
		DefaultSessions:  sessions,
	}, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
