package transport

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/nepse-client/internal/observ"
)

// Client wraps net/http with a token-bucket limiter and a circuit breaker.
// Transport errors and 5xx responses count against the breaker; 5xx
// responses are still handed back to the caller.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	state   int32 // atomic BreakerState

	// Metrics
	requests int64
	refused  int64
}

// upstreamFailure carries a 5xx response through the breaker
type upstreamFailure struct {
	resp *http.Response
}

func (e *upstreamFailure) Error() string {
	return fmt.Sprintf("upstream HTTP %d", e.resp.StatusCode)
}

// New creates a transport client
func New(config Config) *Client {
	config = config.withDefaults()

	base := config.Base
	if base == nil {
		base = http.DefaultTransport
	}

	c := &Client{
		config: config,
		// per-attempt deadlines come from the request context
		http:    &http.Client{Transport: base},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimitPerSecond), config.RateBurst),
	}
	atomic.StoreInt32(&c.state, int32(StateClosed))

	if !config.Breaker.Disabled {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        config.Name,
			MaxRequests: config.Breaker.HalfOpenRequests,
			Interval:    config.Breaker.Interval,
			Timeout:     config.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.Breaker.ConsecutiveFailures
			},
			OnStateChange: c.onStateChange,
		})
	}
	observ.SetGauge("nepse_breaker_state", float64(StateClosed), map[string]string{"breaker": config.Name})
	return c
}

// Do sends req after waiting on the limiter. The limiter wait honours the
// request context, so a per-attempt timeout bounds it too.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	atomic.AddInt64(&c.requests, 1)

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	start := time.Now()
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		observ.RecordDuration("nepse_rate_limit_wait", waited, map[string]string{"breaker": c.config.Name})
	}

	if c.breaker == nil {
		return c.http.Do(req)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, &upstreamFailure{resp: resp}
		}
		return resp, nil
	})

	var failure *upstreamFailure
	switch {
	case errors.As(err, &failure):
		return failure.resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		atomic.AddInt64(&c.refused, 1)
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, req.URL.Path)
	case err != nil:
		return nil, err
	}
	return out.(*http.Response), nil
}

// BreakerState returns the current breaker state
func (c *Client) BreakerState() BreakerState {
	return BreakerState(atomic.LoadInt32(&c.state))
}

// Stats returns request and refusal counts
func (c *Client) Stats() (requests, refused int64) {
	return atomic.LoadInt64(&c.requests), atomic.LoadInt64(&c.refused)
}

func (c *Client) onStateChange(name string, from, to gobreaker.State) {
	var s BreakerState
	switch to {
	case gobreaker.StateOpen:
		s = StateOpen
	case gobreaker.StateHalfOpen:
		s = StateHalfOpen
	default:
		s = StateClosed
	}
	atomic.StoreInt32(&c.state, int32(s))

	observ.SetGauge("nepse_breaker_state", float64(s), map[string]string{"breaker": name})
	observ.Warn("breaker_state_change", map[string]any{
		"breaker": name,
		"from":    from.String(),
		"to":      to.String(),
	})
}
