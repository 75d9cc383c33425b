package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application runtime configuration.
type Config struct {
	Env                  string
	Port                 string
	DatabaseURL          string
	JWTSecret            string
	JWTTTL               time.Duration
	RedisURL             string
	CartTTL              time.Duration
	S3Bucket             string
	S3PublicBaseURL      string
	AWSEndpoint          string
	NotifyChannel        string
	SessionIDMaxAttempts int
	SessionIDRetryDelay  time.Duration
	AdminEmail           string
	AdminPassword        string
}

// Load reads environment variables and .env (if present).
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:                  getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "3000"),
		DatabaseURL:          databaseURL(),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		JWTTTL:               getDuration("JWT_TTL", 24*time.Hour),
		RedisURL:             os.Getenv("REDIS_URL"),
		CartTTL:              getDuration("CART_TTL", 12*time.Hour),
		S3Bucket:             os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:      os.Getenv("S3_PUBLIC_BASE_URL"),
		AWSEndpoint:          os.Getenv("AWS_ENDPOINT"),
		NotifyChannel:        getEnv("NOTIFY_CHANNEL", "pos_changes"),
		SessionIDMaxAttempts: getInt("SESSION_ID_MAX_ATTEMPTS", 5),
		SessionIDRetryDelay:  getDuration("SESSION_ID_RETRY_DELAY", 25*time.Millisecond),
		AdminEmail:           getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
	}
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL (or DB_HOST/DB_NAME) is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	}
	if c.SessionIDMaxAttempts < 1 {
		return errors.New("SESSION_ID_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	if os.Getenv("DB_HOST") == "" || os.Getenv("DB_NAME") == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Jakarta",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		getEnv("DB_PORT", "5432"),
	)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, err := time.ParseDuration(os.Getenv(key))
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}
