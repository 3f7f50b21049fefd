package matrixclient

import (
	"net/http"
	"strings"
)

// Client talks to a deployed homeserver's client-server API surface. It is
// used for readiness verification only; no Matrix protocol state lives here.
type Client struct {
	cfg     Config
	http    *http.Client
	retry   RetryPolicy
	limiter *RateLimiter
	breaker CircuitBreaker
}

func NewFromEnv() *Client {
	return New(LoadFromEnv())
}

func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		retry: RetryPolicy{
			MaxRetries: cfg.RetryCount,
			BaseDelay:  cfg.RetryDelay,
		},
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		breaker: NewCircuitBreaker(cfg),
	}
}

// ForEndpoint returns a client bound to a different base URL with the same
// policies. Probes target per-instance endpoints that are only known at
// deploy time.
func (c *Client) ForEndpoint(baseURL string) *Client {
	cfg := c.cfg
	cfg.BaseURL = baseURL
	return New(cfg)
}
