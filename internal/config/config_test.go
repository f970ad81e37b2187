package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "spaces")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg := Load()
	if cfg.Storage != StorageMySQL || cfg.Timezone != "Asia/Seoul" {
		t.Errorf("storage/timezone = %q/%q", cfg.Storage, cfg.Timezone)
	}
	if cfg.NotifyQueue != "reservation.events" || cfg.NotifyWorkers != 2 || cfg.NotifyBuffer != 256 || cfg.NotifyMaxRetries != 3 {
		t.Errorf("notify settings = %+v", cfg)
	}
	if cfg.ReminderWindowMin != 60 || cfg.ReminderInterval != time.Minute {
		t.Errorf("reminder settings = %d/%s", cfg.ReminderWindowMin, cfg.ReminderInterval)
	}

	ec := cfg.Engine()
	if ec.MaxActiveBookings != 5 || ec.GracePeriod != time.Hour {
		t.Errorf("engine config = %+v", ec)
	}
	if ec.Rules.Horizon != 14*24*time.Hour || ec.Rules.MinDuration != time.Hour || ec.Rules.MaxDuration != 3*time.Hour {
		t.Errorf("rules = %+v", ec.Rules)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE", "memory")
	t.Setenv("AMQP_URL", "amqp://guest:guest@mq:5672/")
	t.Setenv("MAX_ACTIVE_BOOKINGS", "3")
	t.Setenv("CANCEL_GRACE_PERIOD", "2h")
	t.Setenv("NOTIFY_WORKERS", "0")
	cfg := Load()
	if cfg.AMQPURL != "amqp://guest:guest@mq:5672/" {
		t.Errorf("AMQPURL = %q", cfg.AMQPURL)
	}
	if cfg.NotifyWorkers != 1 {
		t.Errorf("NotifyWorkers = %d, want clamped to 1", cfg.NotifyWorkers)
	}
	if ec := cfg.Engine(); ec.MaxActiveBookings != 3 || ec.GracePeriod != 2*time.Hour {
		t.Errorf("engine config = %+v", ec)
	}
}

func TestRabbitURLTakesPrecedence(t *testing.T) {
	setRequired(t)
	t.Setenv("RABBITMQ_URL", "amqp://a/")
	t.Setenv("AMQP_URL", "amqp://b/")
	if got := Load().AMQPURL; got != "amqp://a/" {
		t.Errorf("AMQPURL = %q", got)
	}
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	cfg := LoadRateLimitConfig()
	if cfg.Enabled {
		t.Error("RATE_LIMIT_ENABLED=off ignored")
	}
	if cfg.Capacity != 10 || cfg.RefillTokens != 1 || cfg.RefillInterval != 2*time.Second {
		t.Errorf("bucket = %+v", cfg)
	}
	if cfg.TTL != 10*time.Second {
		t.Errorf("TTL = %s, want clamped to 10s", cfg.TTL)
	}
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	opts := RedisOptions()
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.TLSConfig != nil {
		t.Errorf("options = %+v", opts)
	}
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_TLS", "1")
	opts = RedisOptions()
	if opts.Addr != "redis:6379" || opts.TLSConfig == nil {
		t.Errorf("host/port options = %+v", opts)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(Config{Env: "prod", LogLevel: "loud"}); err == nil {
		t.Error("unknown level accepted")
	}
	log, err := NewLogger(Config{Env: "dev", LogLevel: "debug"})
	if err != nil {
		t.Fatal(err)
	}
	if !log.Core().Enabled(-1) {
		t.Error("debug level not enabled")
	}
}
