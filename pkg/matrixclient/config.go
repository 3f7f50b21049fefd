package matrixclient

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	BaseURL string

	Timeout time.Duration

	RetryCount int
	RetryDelay time.Duration

	RateLimit int
	RateBurst int

	CircuitBreakerEnabled bool
	CBFailureThreshold    int
	CBRecoveryTime        time.Duration
	CBSamplingDuration    time.Duration
	CBHalfOpenMaxSuccess  int
}

func LoadFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("MATRIX_CLIENT_URL"); v != "" {
		cfg.BaseURL = v
	}
	cfg.Timeout = time.Second * time.Duration(getInt("MATRIX_CLIENT_TIMEOUT", 10))
	cfg.RetryCount = getInt("MATRIX_CLIENT_RETRY_COUNT", cfg.RetryCount)
	cfg.RetryDelay = time.Second * time.Duration(getInt("MATRIX_CLIENT_RETRY_DELAY", 1))
	cfg.RateLimit = getInt("MATRIX_CLIENT_RATE_LIMIT", cfg.RateLimit)
	cfg.RateBurst = getInt("MATRIX_CLIENT_RATE_BURST", cfg.RateBurst)
	cfg.CircuitBreakerEnabled = getBool("MATRIX_CLIENT_ENABLE_CIRCUIT_BREAKER", cfg.CircuitBreakerEnabled)
	return cfg
}

// DefaultConfig returns settings suitable for probing a single homeserver.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,

		RetryCount: 2,
		RetryDelay: time.Second,

		RateLimit: 60,
		RateBurst: 5,

		CircuitBreakerEnabled: true,
		CBFailureThreshold:    5,
		CBRecoveryTime:        30 * time.Second,
		CBSamplingDuration:    60 * time.Second,
		CBHalfOpenMaxSuccess:  3,
	}
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		return v == "true"
	}
	return def
}
