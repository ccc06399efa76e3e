package mailclient

import (
	"os"
	"strconv"
	"time"
)

// Config carries mail relay connection and resilience parameters.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	RetryCount int
	RetryDelay time.Duration

	RateLimit int // requests per minute
	RateBurst int

	CircuitBreakerEnabled bool
	CBFailureThreshold    int
	CBMinRequests         int
	CBHalfOpenMaxSuccess  int
	CBSamplingDuration    time.Duration
	CBRecoveryTime        time.Duration
}

func LoadFromEnv() Config {
	return Config{
		BaseURL: os.Getenv("MAIL_RELAY_URL"),
		APIKey:  os.Getenv("MAIL_RELAY_API_KEY"),
		Timeout: envDuration("MAIL_RELAY_TIMEOUT", 10*time.Second),

		RetryCount: envInt("MAIL_RELAY_RETRY_COUNT", 2),
		RetryDelay: envDuration("MAIL_RELAY_RETRY_DELAY", 500*time.Millisecond),

		RateLimit: envInt("MAIL_RELAY_RATE_LIMIT", 120),
		RateBurst: envInt("MAIL_RELAY_RATE_BURST", 10),

		CircuitBreakerEnabled: envBool("MAIL_RELAY_CB_ENABLED", true),
		CBFailureThreshold:    envInt("MAIL_RELAY_CB_FAILURES", 5),
		CBMinRequests:         envInt("MAIL_RELAY_CB_MIN_REQUESTS", 10),
		CBHalfOpenMaxSuccess:  envInt("MAIL_RELAY_CB_HALF_OPEN", 2),
		CBSamplingDuration:    envDuration("MAIL_RELAY_CB_SAMPLING", time.Minute),
		CBRecoveryTime:        envDuration("MAIL_RELAY_CB_RECOVERY", 30*time.Second),
	}
}

func envInt(key string, def int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			return parsed
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			return parsed
		}
	}
	return def
}
