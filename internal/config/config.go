// Package config loads the service's runtime configuration from
// environment variables (spec.md §6.3), via spf13/viper the way
// Ashenafi-pixel-gamecrafter-backoffice-backend's initiator/config.go
// does, and the teacher's own getEnv/getEnvAsInt helpers in
// internal/cache/redis.go (folded here into one typed struct instead of
// scattered package-level vars).
package config

import (
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

// Config is the fully resolved set of environment-driven settings the
// service needs at startup.
type Config struct {
	// Database / cache DSNs, read from DB_HOST, DB_PORT, DB_DATABASE,
	// DB_USERNAME, DB_PASSWORD, DB_SCHEMA and REDIS_*. internal/database
	// and cmd/migrate read their own BLUEPRINT_DB_* variables, not these.
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string

	RedisURL      string
	RedisPassword string
	RedisDB       int

	// spec.md §6.3
	FrontendURL          string
	CoinGeckoAPIURL      string
	PriceCacheDuration   time.Duration
	HouseEdge            float64
	MultiplierTick       time.Duration
	WaitDuration         time.Duration
	PostCrashDuration    time.Duration
	MaxBetUSD            float64
	RateLimitPerMinute   int

	// Gateway auth.
	JWTSecret string

	// Process-level.
	Port string
	Env  string // "development" or "production"
}

// Load reads configuration from the environment, applying the defaults
// spec.md §6.3 lists for every key it doesn't find set.
func Load() *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_DATABASE", "crashcore")
	v.SetDefault("DB_USERNAME", "crashcore")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_SCHEMA", "public")

	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("COINGECKO_API_URL", "https://api.coingecko.com/api/v3/simple/price")
	v.SetDefault("PRICE_CACHE_DURATION_MS", 10000)
	v.SetDefault("HOUSE_EDGE", 0.04)
	v.SetDefault("MULTIPLIER_TICK_MS", 100)
	v.SetDefault("WAIT_MS", 5000)
	v.SetDefault("POST_CRASH_MS", 5000)
	v.SetDefault("MAX_BET_USD", 10000.0)
	v.SetDefault("RATE_LIMIT_PER_MIN", 100)

	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")

	return &Config{
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBName:     v.GetString("DB_DATABASE"),
		DBUser:     v.GetString("DB_USERNAME"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBSchema:   v.GetString("DB_SCHEMA"),

		RedisURL:      v.GetString("REDIS_URL"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		FrontendURL:        v.GetString("FRONTEND_URL"),
		CoinGeckoAPIURL:    v.GetString("COINGECKO_API_URL"),
		PriceCacheDuration: time.Duration(v.GetInt64("PRICE_CACHE_DURATION_MS")) * time.Millisecond,
		HouseEdge:          v.GetFloat64("HOUSE_EDGE"),
		MultiplierTick:     time.Duration(v.GetInt64("MULTIPLIER_TICK_MS")) * time.Millisecond,
		WaitDuration:       time.Duration(v.GetInt64("WAIT_MS")) * time.Millisecond,
		PostCrashDuration:  time.Duration(v.GetInt64("POST_CRASH_MS")) * time.Millisecond,
		MaxBetUSD:          v.GetFloat64("MAX_BET_USD"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MIN"),

		JWTSecret: v.GetString("JWT_SECRET"),
		Port:      v.GetString("PORT"),
		Env:       v.GetString("APP_ENV"),
	}
}

// IsProduction reports whether the service is running outside
// development, which internal/logging uses to pick its zap core.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
