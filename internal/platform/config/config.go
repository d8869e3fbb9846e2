package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr          string
	PostgresURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
	AutoMigrate   bool

	// AmberThresholdDays is the ceiling on days-until-due at which a
	// non-terminal instance turns Amber. Not hardcoded in engine logic.
	AmberThresholdDays int

	Triggers TriggerTimes
}

// TriggerTimes fixes the wall-clock times (UTC) of the daily triggers. The
// cadences themselves are part of the downstream contract; only the times are
// deployment-tunable.
type TriggerTimes struct {
	DailyGenerate time.Duration // offset from midnight UTC
	OverdueSweep  time.Duration
	ReminderTMin3 time.Duration
	ReminderDue   time.Duration
	Escalate      time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Addr:          envOr("OBLIGO_ADDR", ":8080"),
		PostgresURL:   os.Getenv("OBLIGO_POSTGRES_URL"),
		RedisURL:      os.Getenv("OBLIGO_REDIS_URL"),
		KafkaBrokers:  splitList(os.Getenv("OBLIGO_KAFKA_BROKERS")),
		KafkaTopic:    envOr("OBLIGO_KAFKA_TOPIC", "obligo.escalations"),
		JWTSigningKey: envOr("OBLIGO_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AutoMigrate:   os.Getenv("OBLIGO_AUTO_MIGRATE") == "true",

		AmberThresholdDays: envIntOr("OBLIGO_AMBER_THRESHOLD_DAYS", 3),

		Triggers: TriggerTimes{
			DailyGenerate: envClockOr("OBLIGO_TRIGGER_DAILY_GENERATE", 2*time.Hour),
			OverdueSweep:  envClockOr("OBLIGO_TRIGGER_OVERDUE_SWEEP", 6*time.Hour+30*time.Minute),
			ReminderTMin3: envClockOr("OBLIGO_TRIGGER_REMINDER_TMINUS3", 8*time.Hour),
			ReminderDue:   envClockOr("OBLIGO_TRIGGER_REMINDER_DUE", 8*time.Hour+30*time.Minute),
			Escalate:      envClockOr("OBLIGO_TRIGGER_ESCALATE", 9*time.Hour),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envClockOr parses "HH:MM" into an offset from midnight UTC.
func envClockOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return fallback
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return fallback
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RedisConfig carries tuning for the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig applies pool defaults around the configured URL.
func DefaultRedisConfig(url string) RedisConfig {
	return RedisConfig{
		URL:          url,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
