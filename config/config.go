package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/presensia/presensia-core/internal/apperr"
)

// Gateway backends.
const (
	BackendFirebase = "firebase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Local cache drivers.
const (
	CacheBadger = "badger"
	CacheRedis  = "redis"
)

type Config struct {
	Server   ServerConfig
	Firebase FirebaseConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Gateway  GatewayConfig
	App      AppConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
	APIKey          string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	Driver     string
	BadgerPath string
	// Secret derives the key that seals the session token. Empty means a
	// generated key kept next to the cache.
	Secret string
}

type GatewayConfig struct {
	Backend string
	Timeout time.Duration
}

type AppConfig struct {
	Environment     string
	LogLevel        string
	Version         string
	Locale          string
	RefreshSchedule string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			RateLimit:   getEnvAsFloat("RATE_LIMIT_RPS", 20),
			RateBurst:   getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			APIKey:          getEnv("FIREBASE_API_KEY", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "presensia"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Driver:     getEnv("CACHE_DRIVER", CacheBadger),
			BadgerPath: getEnv("CACHE_BADGER_PATH", ".presensia/cache"),
			Secret:     getEnv("CACHE_SECURE_SECRET", ""),
		},
		Gateway: GatewayConfig{
			Backend: getEnv("GATEWAY_BACKEND", BackendFirebase),
			Timeout: getEnvAsDuration("GATEWAY_TIMEOUT", 30*time.Second),
		},
		App: AppConfig{
			Environment:     getEnv("APP_ENV", "development"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			Version:         getEnv("APP_VERSION", "1.0.0"),
			Locale:          getEnv("APP_LOCALE", "en"),
			RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 */5 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Gateway.Backend {
	case BackendFirebase:
		if c.Firebase.CredentialsPath == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required for the firebase backend")
		}
		if c.Firebase.APIKey == "" {
			return fmt.Errorf("FIREBASE_API_KEY is required for the firebase backend")
		}
	case BackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("GATEWAY_BACKEND must be one of firebase, postgres, memory; got %q", c.Gateway.Backend)
	}

	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}

	switch c.Cache.Driver {
	case CacheBadger, CacheRedis:
	default:
		return fmt.Errorf("CACHE_DRIVER must be badger or redis; got %q", c.Cache.Driver)
	}

	if !apperr.MustCatalog().Supports(c.App.Locale) {
		return fmt.Errorf("APP_LOCALE %q is not supported", c.App.Locale)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
