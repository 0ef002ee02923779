package nepse

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rajchodisetti/nepse-client/internal/observ"
	"github.com/Rajchodisetti/nepse-client/internal/transport"
)

const (
	DefaultBaseURL       = "https://nepalstock.com.np"
	DefaultTimeout       = 10 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 1 * time.Second
	DefaultTokenTTL      = 5 * time.Minute
	DefaultSecuritiesTTL = 1 * time.Hour

	securitiesCacheKey = "all"
	userAgent          = "Mozilla/5.0"
)

// DecodeSource selects how decode functions are loaded
type DecodeSource string

const (
	DecodeAuto     DecodeSource = "auto"     // module, falling back to the table
	DecodeWASM     DecodeSource = "wasm"     // module or fail
	DecodeFallback DecodeSource = "fallback" // table only, no fetch
)

// Config holds client settings
type Config struct {
	BaseURL               string
	DecodeSource          DecodeSource
	Retry                 RetryConfig
	TokenTTL              time.Duration
	SecuritiesTTL         time.Duration
	SerializeTokenRefresh bool
	Transport             transport.Config
}

// Client is the NEPSE facade. It holds no per-call state: every operation
// takes a ClientState and returns the next one.
type Client struct {
	config   Config
	doer     transport.Doer
	executor *Executor
	auth     *Authenticator
	tokens   TokenSource
	now      func() time.Time
}

// Option customizes a Client
type Option func(*clientOptions)

type clientOptions struct {
	doer  transport.Doer
	now   func() time.Time
	sleep SleepFunc
}

// WithDoer replaces the rate-limited transport, e.g. with an httptest client
func WithDoer(d transport.Doer) Option {
	return func(o *clientOptions) { o.doer = d }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) { o.now = now }
}

// WithSleep overrides the retry backoff wait
func WithSleep(sleep SleepFunc) Option {
	return func(o *clientOptions) { o.sleep = sleep }
}

// New creates a client
func New(config Config, opts ...Option) (*Client, error) {
	config.BaseURL = strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if u, err := url.Parse(config.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", config.BaseURL)
	}
	switch config.DecodeSource {
	case "":
		config.DecodeSource = DecodeAuto
	case DecodeAuto, DecodeWASM, DecodeFallback:
	default:
		return nil, fmt.Errorf("unknown decode source %q", config.DecodeSource)
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}
	if config.SecuritiesTTL <= 0 {
		config.SecuritiesTTL = DefaultSecuritiesTTL
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.doer == nil {
		o.doer = transport.New(config.Transport)
	}
	if o.now == nil {
		o.now = time.Now
	}

	c := &Client{
		config:   config,
		doer:     o.doer,
		executor: NewExecutor(config.Retry, o.sleep),
		now:      o.now,
	}
	c.auth = NewAuthenticator(config.BaseURL, c.doer, c.executor, config.TokenTTL, c.now)
	c.tokens = c.auth
	if config.SerializeTokenRefresh {
		c.tokens = NewSingleFlightTokens(c.auth)
	}
	return c, nil
}

// Config returns the effective configuration
func (c *Client) Config() Config { return c.config }

// Authenticator exposes the token manager for hosts that refresh tokens directly
func (c *Client) Authenticator() *Authenticator { return c.auth }

// Token returns a valid token for st, refreshing it when needed
func (c *Client) Token(ctx context.Context, st ClientState) (ClientState, string, error) {
	return c.tokens.GetToken(ctx, st)
}

// trace logs the start of an operation and returns a completion logger
// carrying the same correlation id.
func (c *Client) trace(op string, kv map[string]any) func(err error) {
	id := uuid.NewString()
	start := c.now()
	fields := map[string]any{"op": op, "op_id": id}
	for k, v := range kv {
		fields[k] = v
	}
	observ.Debug("nepse_op_start", fields)

	return func(err error) {
		done := map[string]any{"duration_ms": c.now().Sub(start).Milliseconds()}
		for k, v := range fields {
			done[k] = v
		}
		if err != nil {
			done["kind"] = string(KindOf(err))
			observ.Error("nepse_op_failed", err, done)
			return
		}
		observ.Debug("nepse_op_done", done)
	}
}
