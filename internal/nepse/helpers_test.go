package nepse_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/nepse-client/internal/nepse"
	"github.com/Rajchodisetti/nepse-client/internal/stubs"
)

// fakeClock is a settable clock shared by client and test
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 8, 11, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	stub   *stubs.Server
	client *nepse.Client
	clock  *fakeClock
	sleeps *sleepCounter
}

type sleepCounter struct {
	mu    sync.Mutex
	count int
}

func (s *sleepCounter) sleep(ctx context.Context, _ time.Duration) error {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// newHarness starts a stub upstream and a client pointed at it
func newHarness(t *testing.T, cfg nepse.Config, opts ...stubs.ServerOption) *harness {
	t.Helper()

	stub := stubs.NewServer(append([]stubs.ServerOption{stubs.WithAuth()}, opts...)...)
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	h := &harness{stub: stub, clock: newFakeClock(), sleeps: &sleepCounter{}}
	cfg.BaseURL = srv.URL
	if cfg.DecodeSource == "" {
		cfg.DecodeSource = nepse.DecodeFallback
	}
	client, err := nepse.New(cfg,
		nepse.WithDoer(srv.Client()),
		nepse.WithClock(h.clock.Now),
		nepse.WithSleep(h.sleeps.sleep),
	)
	require.NoError(t, err)
	h.client = client
	return h
}

func (h *harness) init(t *testing.T) nepse.ClientState {
	t.Helper()
	st, err := h.client.Initialize(context.Background())
	require.NoError(t, err)
	return st
}
