package nepse

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/Rajchodisetti/nepse-client/internal/observ"
	"github.com/Rajchodisetti/nepse-client/internal/transport"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// NoRetries disables retries when used as RetryConfig.MaxRetries
const NoRetries = -1

// RetryConfig holds the request timeout and backoff budget. Zero fields take
// the defaults; a negative MaxRetries means a single attempt.
type RetryConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	InitialDelay time.Duration
}

// Executor runs one request function under a per-attempt timeout and retries
// transient failures with exponential backoff.
type Executor struct {
	timeout      time.Duration
	maxRetries   int
	initialDelay time.Duration
	sleep        SleepFunc
}

// NewExecutor creates an executor. A nil sleep uses a context-aware timer.
func NewExecutor(cfg RetryConfig, sleep SleepFunc) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultRetryDelay
	}
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Executor{
		timeout:      cfg.Timeout,
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.InitialDelay,
		sleep:        sleep,
	}
}

// Once returns a copy that applies the timeout but never retries.
func (ex *Executor) Once() *Executor {
	cp := *ex
	cp.maxRetries = 0
	return &cp
}

// Backoff returns the wait before retry k (k = 0 for the first retry).
func (ex *Executor) Backoff(k int) time.Duration {
	return ex.initialDelay << uint(k)
}

// Execute calls fn until it succeeds, fails non-transiently, or the retry
// budget runs out. fn must finish reading the response inside the call.
func Execute[T any](ctx context.Context, ex *Executor, endpoint string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := ex.maxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := ex.Backoff(attempt - 1)
			observ.IncCounter("nepse_retries_total", map[string]string{"endpoint": endpoint})
			observ.Warn("request_retry", map[string]any{
				"endpoint": endpoint,
				"attempt":  attempt + 1,
				"delay_ms": delay.Milliseconds(),
				"error":    lastErr.Error(),
			})
			if err := ex.sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, ex.timeout)
		v, err := fn(attemptCtx)
		cancel()
		observ.RecordDuration("nepse_request_duration", time.Since(start), map[string]string{"endpoint": endpoint})
		if err == nil {
			observ.IncCounter("nepse_requests_total", map[string]string{"endpoint": endpoint, "outcome": "ok"})
			return v, nil
		}

		// caller cancellation is final
		if ctx.Err() != nil {
			observ.IncCounter("nepse_requests_total", map[string]string{"endpoint": endpoint, "outcome": "cancelled"})
			return zero, err
		}
		if !IsTransient(err) {
			observ.IncCounter("nepse_requests_total", map[string]string{"endpoint": endpoint, "outcome": "error"})
			return zero, err
		}
		lastErr = err
	}

	observ.IncCounter("nepse_requests_total", map[string]string{"endpoint": endpoint, "outcome": "exhausted"})
	return zero, NewRetriesExhaustedError(endpoint, attempts, lastErr)
}

// IsTransient reports whether err is a timeout, a connection-level failure or
// a refusal by the open breaker. Status and decode errors are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var status *HTTPStatusError
	if errors.As(err, &status) {
		return false
	}
	// the breaker may half-open before the budget runs out
	if errors.Is(err, transport.ErrCircuitOpen) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
