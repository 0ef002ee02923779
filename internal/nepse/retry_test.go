package nepse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/nepse-client/internal/transport"
)

// recordingSleep captures backoff waits without sleeping
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func (r *recordingSleep) total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, d := range r.delays {
		sum += d
	}
	return sum
}

func flaky(failures int, err error) (func(context.Context) (string, error), *int) {
	calls := 0
	return func(context.Context) (string, error) {
		calls++
		if calls <= failures {
			return "", err
		}
		return "ok", nil
	}, &calls
}

var errConnRefused = &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}

func TestExecute_TransientThenSuccess(t *testing.T) {
	rec := &recordingSleep{}
	ex := NewExecutor(RetryConfig{}, rec.sleep)

	fn, calls := flaky(DefaultMaxRetries, errConnRefused)
	got, err := Execute(context.Background(), ex, "test", fn)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, DefaultMaxRetries+1, *calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestExecute_RetriesExhausted(t *testing.T) {
	rec := &recordingSleep{}
	ex := NewExecutor(RetryConfig{MaxRetries: 3}, rec.sleep)

	fn, calls := flaky(4, errConnRefused)
	_, err := Execute(context.Background(), ex, "test", fn)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
	assert.True(t, IsKind(err, KindRetriesExhausted))
	assert.ErrorIs(t, err, syscall.ECONNREFUSED, "last cause is preserved")
	assert.Equal(t, 4, *calls)
	assert.Len(t, rec.delays, 3)
}

func TestExecute_NonTransientFailsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"http status", &HTTPStatusError{StatusCode: 503, Status: "503 Service Unavailable"}},
		{"decode", fmt.Errorf("decode response: %w", errors.New("invalid character '<'"))},
		{"client error", NewSecurityNotFoundError("XYZ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingSleep{}
			ex := NewExecutor(RetryConfig{}, rec.sleep)

			fn, calls := flaky(1, tt.err)
			_, err := Execute(context.Background(), ex, "test", fn)

			assert.ErrorIs(t, err, tt.err)
			assert.False(t, IsKind(err, KindRetriesExhausted))
			assert.Equal(t, 1, *calls)
			assert.Zero(t, rec.total())
		})
	}
}

func TestExecute_AttemptTimeoutIsTransient(t *testing.T) {
	rec := &recordingSleep{}
	ex := NewExecutor(RetryConfig{Timeout: 10 * time.Millisecond, MaxRetries: 1}, rec.sleep)

	calls := 0
	got, err := Execute(context.Background(), ex, "test", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "late", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "late", got)
	assert.Equal(t, []time.Duration{time.Second}, rec.delays)
}

func TestExecute_CallerCancellationIsFinal(t *testing.T) {
	rec := &recordingSleep{}
	ex := NewExecutor(RetryConfig{}, rec.sleep)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Execute(ctx, ex, "test", func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", errConnRefused
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestExecute_OnceNeverRetries(t *testing.T) {
	rec := &recordingSleep{}
	ex := NewExecutor(RetryConfig{}, rec.sleep).Once()

	fn, calls := flaky(1, errConnRefused)
	_, err := Execute(context.Background(), ex, "prove", fn)

	assert.True(t, IsKind(err, KindRetriesExhausted))
	assert.Equal(t, 1, *calls)
	assert.Empty(t, rec.delays)
}

func TestExecute_OpenBreakerExhaustsBudget(t *testing.T) {
	rec := &recordingSleep{}
	ex := NewExecutor(RetryConfig{}, rec.sleep)

	fn, calls := flaky(10, fmt.Errorf("%w: /api/nots/nepse-data/market-open", transport.ErrCircuitOpen))
	_, err := Execute(context.Background(), ex, "market_status", fn)

	assert.True(t, IsKind(err, KindRetriesExhausted))
	assert.ErrorIs(t, err, transport.ErrCircuitOpen)
	assert.Equal(t, DefaultMaxRetries+1, *calls)
	assert.Equal(t, 7*time.Second, rec.total())
}

func TestExecute_OpenBreakerRecovers(t *testing.T) {
	rec := &recordingSleep{}
	ex := NewExecutor(RetryConfig{}, rec.sleep)

	fn, calls := flaky(2, transport.ErrCircuitOpen)
	got, err := Execute(context.Background(), ex, "index", fn)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, *calls)
}

func TestNewExecutor_RetryBudget(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		wantCalls  int
	}{
		{"zero takes default", 0, DefaultMaxRetries + 1},
		{"explicit", 1, 2},
		{"disabled", NoRetries, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingSleep{}
			ex := NewExecutor(RetryConfig{MaxRetries: tt.maxRetries}, rec.sleep)

			fn, calls := flaky(10, errConnRefused)
			_, err := Execute(context.Background(), ex, "test", fn)

			assert.True(t, IsKind(err, KindRetriesExhausted))
			assert.Equal(t, tt.wantCalls, *calls)
			assert.Len(t, rec.delays, tt.wantCalls-1)
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"op error", errConnRefused, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "nepalstock.com.np"}, true},
		{"status", &HTTPStatusError{StatusCode: 401, Status: "401 Unauthorized"}, false},
		{"breaker open", fmt.Errorf("%w: /api/nots/nepse-index", transport.ErrCircuitOpen), true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestExecutor_Backoff(t *testing.T) {
	ex := NewExecutor(RetryConfig{InitialDelay: 250 * time.Millisecond}, nil)
	assert.Equal(t, 250*time.Millisecond, ex.Backoff(0))
	assert.Equal(t, 500*time.Millisecond, ex.Backoff(1))
	assert.Equal(t, time.Second, ex.Backoff(2))
}
