package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/mtlprog/stakingcalc/internal/domain"
)

// MinFetchBuffer is the smallest margin allowed before the earliest reward day.
const MinFetchBuffer = 24 * time.Hour

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL           string
	KrakenURL             string
	KrakenRetryMax        int
	KrakenRetryBaseDelay  time.Duration
	KrakenRateLimit       float64
	KrakenTimeout         time.Duration
	FetchBuffer           time.Duration
	DefaultFiat           domain.Fiat
	HTTPPort              string
	AdminAPIKey           string
	GoogleSheetsID        string
	GoogleCredentialsJSON string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DatabaseURL:           envOrDefaultWarn("DATABASE_URL", ""),
		KrakenURL:             envOrDefault("KRAKEN_URL", "https://api.kraken.com"),
		KrakenRetryMax:        envOrDefaultInt("KRAKEN_RETRY_MAX", 5),
		KrakenRetryBaseDelay:  envOrDefaultDuration("KRAKEN_RETRY_BASE_DELAY", 2*time.Second),
		KrakenRateLimit:       envOrDefaultFloat("KRAKEN_RATE_LIMIT", 1),
		KrakenTimeout:         envOrDefaultDuration("KRAKEN_TIMEOUT", 30*time.Second),
		FetchBuffer:           fetchBuffer(envOrDefaultDuration("FETCH_BUFFER", 48*time.Hour)),
		DefaultFiat:           envOrDefaultFiat("DEFAULT_FIAT", domain.FiatEUR),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:           os.Getenv("ADMIN_API_KEY"),
		GoogleSheetsID:        os.Getenv("GOOGLE_SHEETS_ID"),
		GoogleCredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
	}
}

// SheetsEnabled reports whether Google Sheets export is configured.
func (c Config) SheetsEnabled() bool {
	return c.GoogleSheetsID != "" && c.GoogleCredentialsJSON != ""
}

func fetchBuffer(d time.Duration) time.Duration {
	if d < MinFetchBuffer {
		slog.Warn("FETCH_BUFFER below minimum, using minimum", "value", d, "minimum", MinFetchBuffer)
		return MinFetchBuffer
	}
	return d
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid number env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return f
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

func envOrDefaultFiat(key string, defaultVal domain.Fiat) domain.Fiat {
	if v := os.Getenv(key); v != "" {
		f, err := domain.ParseFiat(v)
		if err != nil {
			slog.Warn("unsupported fiat env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return f
	}
	return defaultVal
}
