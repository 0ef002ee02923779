package transport

import (
	"errors"
	"net/http"
	"time"
)

// Doer is the minimal HTTP surface used by the NEPSE client
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrCircuitOpen is returned while the upstream breaker refuses calls
var ErrCircuitOpen = errors.New("transport: circuit open")

// Config holds outbound transport settings
type Config struct {
	Name               string
	UserAgent          string
	RateLimitPerSecond float64
	RateBurst          int
	Breaker            BreakerConfig

	// Base is the underlying transport; nil means http.DefaultTransport
	Base http.RoundTripper
}

// BreakerConfig configures the upstream circuit breaker
type BreakerConfig struct {
	Disabled            bool
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
	Interval            time.Duration
}

// BreakerState mirrors the breaker lifecycle for metrics
type BreakerState int

const (
	StateClosed   BreakerState = iota // 0 = closed
	StateHalfOpen                     // 1 = probing
	StateOpen                         // 2 = refusing
)

// String returns human-readable breaker state
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "nepse"
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0"
	}
	if c.RateLimitPerSecond <= 0 {
		c.RateLimitPerSecond = 5
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 5
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = 5
	}
	if c.Breaker.OpenTimeout <= 0 {
		c.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Breaker.HalfOpenRequests == 0 {
		c.Breaker.HalfOpenRequests = 1
	}
	if c.Breaker.Interval <= 0 {
		c.Breaker.Interval = 60 * time.Second
	}
	return c
}
