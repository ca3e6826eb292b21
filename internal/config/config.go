package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"travel-booking/internal/auth"
	"travel-booking/internal/db"
	"travel-booking/internal/media"
)

var ErrMissingDatabaseURL = errors.New("missing required env: DATABASE_URL")

type Config struct {
	Port            string
	AppEnv          string
	LogLevel        string
	SentryDSN       string
	DatabaseURL     string
	Pool            db.PoolConfig
	ShutdownTimeout time.Duration

	JWTSecret string
	// InsecureJWTSecret is set when JWT_SECRET was absent and the
	// built-in development secret is in use.
	InsecureJWTSecret bool

	RedisURL           string
	LoginRateLimitMax  int
	LoginRateWindow    time.Duration
	LoginMaxAttempts   int
	LoginLockDuration  time.Duration
	CORSAllowedOrigins []string

	CronSecret            string
	LoginAttemptRetention time.Duration
	CleanupBatchSize      int

	AdminEmail    string
	AdminPassword string
	UsersSeedFile string

	S3 media.S3Config

	KafkaBrokers      string
	KafkaBookingTopic string
}

// Load reads the process environment. Only DATABASE_URL is required.
func Load() (Config, error) {
	cfg := Config{
		Port:        envOrDefault("PORT", "8080"),
		AppEnv:      envOrDefault("APP_ENV", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		SentryDSN:   strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Pool: db.PoolConfig{
			MaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
			ConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		},
		ShutdownTimeout: envSecondsOrDefault("SHUTDOWN_TIMEOUT_SECONDS", 10),

		JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET")),

		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		LoginRateLimitMax:  envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateWindow:    envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
		LoginMaxAttempts:   envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockDuration:  envMinutesOrDefault("LOGIN_LOCK_MINUTES", 15),
		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),

		CronSecret:            strings.TrimSpace(os.Getenv("CRON_SECRET")),
		LoginAttemptRetention: envDaysOrDefault("AUTH_LOGIN_ATTEMPT_RETENTION_DAYS", 30),
		CleanupBatchSize:      envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),

		AdminEmail:    strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		UsersSeedFile: strings.TrimSpace(os.Getenv("USERS_SEED_FILE")),

		S3: media.S3Config{
			Bucket:        strings.TrimSpace(os.Getenv("S3_BUCKET")),
			Region:        strings.TrimSpace(os.Getenv("S3_REGION")),
			Endpoint:      strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			AccessKey:     strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
			SecretKey:     strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
			PublicBaseURL: strings.TrimSpace(os.Getenv("S3_PUBLIC_BASE_URL")),
		},

		KafkaBrokers:      strings.TrimSpace(os.Getenv("KAFKA_BROKERS")),
		KafkaBookingTopic: envOrDefault("KAFKA_BOOKING_TOPIC", "booking-events"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, ErrMissingDatabaseURL
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = auth.DefaultJWTSecret
		cfg.InsecureJWTSecret = true
	}

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

// envList splits a comma separated value, dropping blanks.
func envList(name string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
