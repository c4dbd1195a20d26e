package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env               string
	HTTPPort          string
	SheetURL          string
	SheetTimeout      time.Duration
	SheetSkip         bool
	RedisAddr         string
	CacheBackend      string
	OutboxBackend     string
	DatabaseURL       string
	JWTIssuer         string
	JWTSigningKey     string
	AccessTTL         time.Duration
	AdminPassword     string
	StaffPassword     string
	GuardianPassword  string
	StudentSyncPolicy string
	SyncInterval      time.Duration
	RateLimitPerMin   int
}

// Load returns application config populated from environment variables with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() App {
	_ = godotenv.Load()

	return App{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPPort:          getEnv("HTTP_PORT", "8082"),
		SheetURL:          getEnv("SHEET_URL", ""),
		SheetTimeout:      durationEnv("SHEET_TIMEOUT", 8*time.Second),
		SheetSkip:         boolEnv("SHEET_SKIP", false),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		CacheBackend:      getEnv("CACHE_BACKEND", "redis"),
		OutboxBackend:     getEnv("OUTBOX_BACKEND", "redis"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTIssuer:         getEnv("JWT_ISSUER", "prayerlog"),
		JWTSigningKey:     getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:         durationEnv("ACCESS_TTL", 720*time.Hour),
		AdminPassword:     getEnv("ADMIN_PASSWORD", "admin123"),
		StaffPassword:     getEnv("STAFF_PASSWORD", "guru123"),
		GuardianPassword:  getEnv("GUARDIAN_PASSWORD", "wali123"),
		StudentSyncPolicy: getEnv("STUDENT_SYNC_POLICY", "replace"),
		SyncInterval:      durationEnv("SYNC_INTERVAL", 5*time.Minute),
		RateLimitPerMin:   intEnv("RATE_LIMIT_PER_MIN", 120),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
