package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Rajchodisetti/nepse-client/internal/nepse"
	"github.com/Rajchodisetti/nepse-client/internal/observ"
	"github.com/Rajchodisetti/nepse-client/internal/transport"
)

type NEPSE struct {
	BaseURL               string `yaml:"base_url"`
	DecodeSource          string `yaml:"decode_source"` // auto | wasm | fallback
	TimeoutMs             int    `yaml:"timeout_ms"`
	MaxRetries            *int   `yaml:"max_retries"` // 0 disables retries
	BackoffBaseMs         int    `yaml:"backoff_base_ms"`
	TokenTTLSecs          int    `yaml:"token_ttl_seconds"`
	SecuritiesTTLSecs     int    `yaml:"securities_ttl_seconds"`
	SerializeTokenRefresh bool   `yaml:"serialize_token_refresh"`
}

type Transport struct {
	RateLimitPerSecond  float64 `yaml:"rate_limit_per_second"`
	RateBurst           int     `yaml:"rate_burst"`
	BreakerDisabled     bool    `yaml:"breaker_disabled"`
	BreakerFailures     uint32  `yaml:"breaker_consecutive_failures"`
	BreakerOpenSecs     int     `yaml:"breaker_open_seconds"`
	BreakerHalfOpenReqs uint32  `yaml:"breaker_half_open_requests"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Root struct {
	NEPSE     NEPSE            `yaml:"nepse"`
	Transport Transport        `yaml:"transport"`
	Log       observ.LogConfig `yaml:"log"`
	Server    Server           `yaml:"server"`
}

// Load reads a YAML file, then applies env overrides and defaults
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	c.applyEnv()
	c.applyDefaults()
	return c, nil
}

// Default is the configuration used when no file is given
func Default() Root {
	var c Root
	c.applyEnv()
	c.applyDefaults()
	return c
}

func (c *Root) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("NEPSE_BASE_URL")); v != "" {
		c.NEPSE.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("NEPSE_DECODE_SOURCE")); v != "" {
		c.NEPSE.DecodeSource = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("NEPSE_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
}

func (c *Root) applyDefaults() {
	if c.NEPSE.BaseURL == "" {
		c.NEPSE.BaseURL = nepse.DefaultBaseURL
	}
	if c.NEPSE.DecodeSource == "" {
		c.NEPSE.DecodeSource = string(nepse.DecodeAuto)
	}
	if c.NEPSE.TimeoutMs == 0 {
		c.NEPSE.TimeoutMs = 10000
	}
	if c.NEPSE.MaxRetries == nil {
		retries := nepse.DefaultMaxRetries
		c.NEPSE.MaxRetries = &retries
	}
	if c.NEPSE.BackoffBaseMs == 0 {
		c.NEPSE.BackoffBaseMs = 1000
	}
	if c.NEPSE.TokenTTLSecs == 0 {
		c.NEPSE.TokenTTLSecs = 300
	}
	if c.NEPSE.SecuritiesTTLSecs == 0 {
		c.NEPSE.SecuritiesTTLSecs = 3600
	}

	// Transport defaults
	if c.Transport.RateLimitPerSecond == 0 {
		c.Transport.RateLimitPerSecond = 5
	}
	if c.Transport.RateBurst == 0 {
		c.Transport.RateBurst = 5
	}
	if c.Transport.BreakerFailures == 0 {
		c.Transport.BreakerFailures = 5
	}
	if c.Transport.BreakerOpenSecs == 0 {
		c.Transport.BreakerOpenSecs = 30
	}
	if c.Transport.BreakerHalfOpenReqs == 0 {
		c.Transport.BreakerHalfOpenReqs = 1
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
}

func (c Root) retryBudget() int {
	switch {
	case c.NEPSE.MaxRetries == nil:
		return 0
	case *c.NEPSE.MaxRetries <= 0:
		return nepse.NoRetries
	}
	return *c.NEPSE.MaxRetries
}

// ClientConfig converts to the client's settings
func (c Root) ClientConfig() nepse.Config {
	return nepse.Config{
		BaseURL:      c.NEPSE.BaseURL,
		DecodeSource: nepse.DecodeSource(c.NEPSE.DecodeSource),
		Retry: nepse.RetryConfig{
			Timeout:      time.Duration(c.NEPSE.TimeoutMs) * time.Millisecond,
			MaxRetries:   c.retryBudget(),
			InitialDelay: time.Duration(c.NEPSE.BackoffBaseMs) * time.Millisecond,
		},
		TokenTTL:              time.Duration(c.NEPSE.TokenTTLSecs) * time.Second,
		SecuritiesTTL:         time.Duration(c.NEPSE.SecuritiesTTLSecs) * time.Second,
		SerializeTokenRefresh: c.NEPSE.SerializeTokenRefresh,
		Transport: transport.Config{
			Name:               "nepse",
			RateLimitPerSecond: c.Transport.RateLimitPerSecond,
			RateBurst:          c.Transport.RateBurst,
			Breaker: transport.BreakerConfig{
				Disabled:            c.Transport.BreakerDisabled,
				ConsecutiveFailures: c.Transport.BreakerFailures,
				OpenTimeout:         time.Duration(c.Transport.BreakerOpenSecs) * time.Second,
				HalfOpenRequests:    c.Transport.BreakerHalfOpenReqs,
			},
		},
	}
}
