package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName          = "FxWallet"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultBaseCurrency     = "EUR"
	defaultRateCacheTTL     = 10 * time.Minute
	defaultRatesFeedURL     = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"
	defaultRatesFeedTimeout = 30 * time.Second
	defaultRatesRetryMax    = 3
	defaultRatesRetryDelay  = 2 * time.Second
	defaultRatesInterval    = time.Hour
	defaultAdjustAttempts   = 3
	defaultAdjustBackoff    = 25 * time.Millisecond
	defaultAdjustRateLimit  = 60
	defaultKafkaTopic       = "wallet.events"
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	BaseCurrency         string
	RateCacheTTL         time.Duration
	RatesFeedURL         string
	RatesFeedTimeout     time.Duration
	RatesFeedRetryMax    int
	RatesFeedRetryDelay  time.Duration
	RatesRefreshInterval time.Duration

	AdjustMaxAttempts     int
	AdjustBackoff         time.Duration
	AdjustRateLimitPerMin int

	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration values from the environment, after merging an
// optional .env file, and populates a Config instance.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:      getEnv("APP_NAME", defaultAppName),
		AppEnv:       getEnv("APP_ENV", defaultAppEnv),
		Port:         getEnv("PORT", defaultPort),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:    strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		BaseCurrency: strings.ToUpper(getEnv("BASE_CURRENCY", defaultBaseCurrency)),
		RatesFeedURL: getEnv("RATES_FEED_URL", defaultRatesFeedURL),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", defaultKafkaTopic),
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateCacheTTL, err = getDuration("RATE_CACHE_TTL", defaultRateCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.RatesFeedTimeout, err = getDuration("RATES_FEED_TIMEOUT", defaultRatesFeedTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RatesFeedRetryMax, err = getInt("RATES_FEED_RETRY_MAX", defaultRatesRetryMax); err != nil {
		return Config{}, err
	}
	if cfg.RatesFeedRetryDelay, err = getDuration("RATES_FEED_RETRY_DELAY", defaultRatesRetryDelay); err != nil {
		return Config{}, err
	}
	if cfg.RatesRefreshInterval, err = getDuration("RATES_REFRESH_INTERVAL", defaultRatesInterval); err != nil {
		return Config{}, err
	}
	if cfg.AdjustMaxAttempts, err = getInt("ADJUST_MAX_ATTEMPTS", defaultAdjustAttempts); err != nil {
		return Config{}, err
	}
	if cfg.AdjustBackoff, err = getDuration("ADJUST_BACKOFF", defaultAdjustBackoff); err != nil {
		return Config{}, err
	}
	if cfg.AdjustRateLimitPerMin, err = getInt("ADJUST_RATE_LIMIT_PER_MIN", defaultAdjustRateLimit); err != nil {
		return Config{}, err
	}

	if cfg.AdjustMaxAttempts < 1 {
		return Config{}, fmt.Errorf("ADJUST_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.RatesRefreshInterval <= 0 {
		return Config{}, fmt.Errorf("RATES_REFRESH_INTERVAL must be positive")
	}
	if len(cfg.BaseCurrency) != 3 {
		return Config{}, fmt.Errorf("BASE_CURRENCY must be a 3-letter code")
	}

	if !cfg.IsDevelopment() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether in-memory fallbacks are allowed.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return getDuration(durationKey, fallback)
}
