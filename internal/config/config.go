package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds deployment settings and secrets taken from the environment.
type Config struct {
	SettingsFile   string  `env:"SETTINGS_FILE" envDefault:"config/settings.yaml"`
	TwelveAPIKey   string  `env:"TWELVE_API_KEY" envDefault:"-"`
	TelegramToken  string  `env:"TELEGRAM_BOT_TOKEN" envDefault:"-"`
	TelegramChatID int64   `env:"TELEGRAM_CHAT_ID" envDefault:"0"`
	LogLevel       string  `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string  `env:"LOG_FORMAT" envDefault:"console"`
	MetricsAddr    string  `env:"METRICS_ADDR" envDefault:""`
	StatsBackend   string  `env:"STATS_BACKEND" envDefault:"memory"`
	RequestTimeout int     `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	RequestsPerSec float64 `env:"REQUESTS_PER_SEC" envDefault:"1"`

	// Paper gateway
	GatewayBalance  float64 `env:"GATEWAY_BALANCE" envDefault:"1000"`
	GatewayLeverage float64 `env:"GATEWAY_LEVERAGE" envDefault:"100"`
	GatewaySpread   int     `env:"GATEWAY_SPREAD" envDefault:"20"`
	BarCacheSeconds int     `env:"BAR_CACHE_SECONDS" envDefault:"10"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:""`
	DBName     string `env:"DB_NAME" envDefault:"goldscalper"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.SettingsFile = getEnvWithDefault("SETTINGS_FILE", "config/settings.yaml")
	cfg.TwelveAPIKey = os.Getenv("TWELVE_API_KEY")
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = int64(getEnvIntWithDefault("TELEGRAM_CHAT_ID", 0))
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvWithDefault("LOG_FORMAT", "console")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.StatsBackend = getEnvWithDefault("STATS_BACKEND", "memory")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.RequestsPerSec = getEnvFloatWithDefault("REQUESTS_PER_SEC", 1)

	cfg.GatewayBalance = getEnvFloatWithDefault("GATEWAY_BALANCE", 1000)
	cfg.GatewayLeverage = getEnvFloatWithDefault("GATEWAY_LEVERAGE", 100)
	cfg.GatewaySpread = getEnvIntWithDefault("GATEWAY_SPREAD", 20)
	cfg.BarCacheSeconds = getEnvIntWithDefault("BAR_CACHE_SECONDS", 10)

	cfg.DBHost = getEnvWithDefault("DB_HOST", "localhost")
	cfg.DBPort = getEnvIntWithDefault("DB_PORT", 5432)
	cfg.DBUser = getEnvWithDefault("DB_USER", "postgres")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = getEnvWithDefault("DB_NAME", "goldscalper")
	cfg.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")

	cfg.RedisAddr = getEnvWithDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvIntWithDefault("REDIS_DB", 0)

	return &cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
