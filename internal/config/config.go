package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/space-reservation/internal/eligibility"
	"github.com/iliyamo/space-reservation/internal/engine"
)

// Storage backends selectable through STORAGE.
const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	Storage   string // "mysql" or "memory"
	LogLevel  string // zap level name
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify JWTs

	Timezone          string        // facility IANA zone
	MaxActiveBookings int           // per-user cap on upcoming bookings
	HorizonDays       int           // how far ahead bookings may start
	MinBookingMinutes int           // shortest booking
	MaxBookingMinutes int           // longest booking
	CancelGrace       time.Duration // minimum lead time for user cancellations
	MaxRangeDays      int           // longest availability query

	AMQPURL           string        // broker URL; empty disables publishing
	NotifyQueue       string        // queue name for reservation events
	NotifyWorkers     int           // dispatcher goroutines
	NotifyBuffer      int           // dispatcher channel size
	NotifyMaxRetries  int           // publish attempts after the first
	NotifyRetryDelay  time.Duration // linear backoff step between attempts
	ReminderWindowMin int           // reminder look-ahead in minutes
	ReminderInterval  time.Duration // time between reminder sweeps
}

// Load reads configuration values from the environment, after merging a
// .env file when one exists.  Required variables are enforced by must()
// and missing values cause the program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		Storage:   envStr("STORAGE", StorageMySQL),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		JWTSecret: must("JWT_SECRET"),

		Timezone:          envStr("FACILITY_TIMEZONE", "Asia/Seoul"),
		MaxActiveBookings: envInt("MAX_ACTIVE_BOOKINGS", 5),
		HorizonDays:       envInt("BOOKING_HORIZON_DAYS", 14),
		MinBookingMinutes: envInt("MIN_BOOKING_MINUTES", 60),
		MaxBookingMinutes: envInt("MAX_BOOKING_MINUTES", 180),
		CancelGrace:       envDur("CANCEL_GRACE_PERIOD", time.Hour),
		MaxRangeDays:      envInt("MAX_RANGE_DAYS", 62),

		AMQPURL:           firstEnv("RABBITMQ_URL", "AMQP_URL"),
		NotifyQueue:       envStr("NOTIFY_QUEUE", "reservation.events"),
		NotifyWorkers:     envInt("NOTIFY_WORKERS", 2),
		NotifyBuffer:      envInt("NOTIFY_BUFFER", 256),
		NotifyMaxRetries:  envInt("NOTIFY_MAX_RETRIES", 3),
		NotifyRetryDelay:  envDur("NOTIFY_RETRY_DELAY", 500*time.Millisecond),
		ReminderWindowMin: envInt("REMINDER_WINDOW_MINUTES", 60),
		ReminderInterval:  envDur("REMINDER_INTERVAL", time.Minute),
	}
	switch cfg.Storage {
	case StorageMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case StorageMemory:
	default:
		log.Fatalf("invalid STORAGE %q (want %s or %s)", cfg.Storage, StorageMySQL, StorageMemory)
	}
	if cfg.NotifyWorkers < 1 {
		cfg.NotifyWorkers = 1
	}
	if cfg.NotifyBuffer < 1 {
		cfg.NotifyBuffer = 1
	}
	return cfg
}

// Engine converts the business limits into an engine.Config.
func (c Config) Engine() engine.Config {
	ec := engine.DefaultConfig()
	ec.Rules = eligibility.Rules{
		Horizon:     time.Duration(c.HorizonDays) * 24 * time.Hour,
		MinDuration: time.Duration(c.MinBookingMinutes) * time.Minute,
		MaxDuration: time.Duration(c.MaxBookingMinutes) * time.Minute,
	}
	ec.MaxActiveBookings = c.MaxActiveBookings
	ec.GracePeriod = c.CancelGrace
	ec.MaxRangeDays = c.MaxRangeDays
	return ec
}

// IsDev reports whether the process runs in the development environment.
func (c Config) IsDev() bool { return c.Env == "dev" || c.Env == "development" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
