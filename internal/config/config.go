package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName    string
	AppVersion string
	Port       string

	Environment   string
	AdminAPIToken string

	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// Automation engine tunables.
	EngineTickInterval   time.Duration
	EngineBatchSize      int
	EngineConcurrency    int
	EngineProjectTimeout time.Duration
	StuckAfter           time.Duration
	RemindAfter          time.Duration
	StuckCooldown        time.Duration
	RemindCooldown       time.Duration

	CatalogCacheTTL time.Duration

	// Browser push signing keys. Push is skipped when unset.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDContact    string

	// Base64-encoded AES-256 key for push subscription keys at rest.
	// Empty stores them in plaintext.
	PushSubscriptionEncKey string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	_ = godotenv.Load()
	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "studio-portal"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Port:              getenv("PORT", "8081"),
		Environment:       environment,
		AdminAPIToken:     strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "studio_portal"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 100),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 60),

		EngineTickInterval:   getenvDuration("ENGINE_TICK_INTERVAL", time.Minute),
		EngineBatchSize:      getenvInt("ENGINE_BATCH_SIZE", 200),
		EngineConcurrency:    getenvInt("ENGINE_SWEEP_CONCURRENCY", 8),
		EngineProjectTimeout: getenvDuration("ENGINE_PROJECT_TIMEOUT", 5*time.Second),
		StuckAfter:           getenvDuration("ENGINE_STUCK_AFTER", 7*24*time.Hour),
		RemindAfter:          getenvDuration("ENGINE_REMIND_AFTER", 3*24*time.Hour),
		StuckCooldown:        getenvDuration("ENGINE_STUCK_COOLDOWN", 3*24*time.Hour),
		RemindCooldown:       getenvDuration("ENGINE_REMIND_COOLDOWN", 24*time.Hour),

		CatalogCacheTTL: getenvDuration("CATALOG_CACHE_TTL", 3*time.Minute),

		VAPIDPublicKey:  strings.TrimSpace(getenv("VAPID_PUBLIC_KEY", "")),
		VAPIDPrivateKey: strings.TrimSpace(getenv("VAPID_PRIVATE_KEY", "")),
		VAPIDContact:    strings.TrimSpace(getenv("VAPID_CONTACT", "mailto:ops@atelierlabs.dev")),

		PushSubscriptionEncKey: strings.TrimSpace(getenv("PUSH_SUBSCRIPTION_ENC_KEY", "")),
	}

	return &cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
