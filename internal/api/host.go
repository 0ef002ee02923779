package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Rajchodisetti/nepse-client/internal/nepse"
	"github.com/Rajchodisetti/nepse-client/internal/observ"
)

// Host serves NEPSE data over HTTP. It owns the single authoritative
// ClientState and swaps in each operation's result.
type Host struct {
	client *nepse.Client
	router *mux.Router

	mu    sync.Mutex
	state nepse.ClientState
}

// NewHost wraps an initialized state
func NewHost(client *nepse.Client, st nepse.ClientState) *Host {
	h := &Host{client: client, state: st, router: mux.NewRouter()}
	h.setupRoutes()
	return h
}

func (h *Host) setupRoutes() {
	h.router.Use(h.requestIDMiddleware)
	h.router.Use(h.requestLoggingMiddleware)

	h.router.Handle("/health", observ.Health()).Methods(http.MethodGet)
	h.router.Handle("/metrics", observ.Handler()).Methods(http.MethodGet)

	api := h.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/market-status", h.marketStatus).Methods(http.MethodGet)
	api.HandleFunc("/securities", h.securities).Methods(http.MethodGet)
	api.HandleFunc("/securities/{symbol}", h.securityDetail).Methods(http.MethodGet)
	api.HandleFunc("/index", h.index).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// State returns the current state snapshot
func (h *Host) State() nepse.ClientState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Host) store(st nepse.ClientState) {
	h.mu.Lock()
	h.state = st
	h.mu.Unlock()
}

// run executes op on a snapshot and keeps the state it returns. Concurrent
// requests may redo a token refresh; the last writer wins.
func run[T any](h *Host, r *http.Request, op func(context.Context, nepse.ClientState) (nepse.ClientState, T, error)) (T, error) {
	next, v, err := op(r.Context(), h.State())
	if err == nil {
		h.store(next)
	}
	return v, err
}

func (h *Host) marketStatus(w http.ResponseWriter, r *http.Request) {
	v, err := run(h, r, h.client.MarketStatus)
	respond(w, v, err)
}

func (h *Host) securities(w http.ResponseWriter, r *http.Request) {
	v, err := run(h, r, h.client.Securities)
	respond(w, v, err)
}

func (h *Host) securityDetail(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	v, err := run(h, r, func(ctx context.Context, st nepse.ClientState) (nepse.ClientState, nepse.SecurityDetail, error) {
		return h.client.SecurityDetail(ctx, st, symbol)
	})
	respond(w, v, err)
}

func (h *Host) index(w http.ResponseWriter, r *http.Request) {
	v, err := run(h, r, h.client.Index)
	respond(w, v, err)
}

// StatusFor maps a client error to an HTTP status
func StatusFor(err error) int {
	switch nepse.KindOf(err) {
	case nepse.KindSecurityNotFound:
		return http.StatusNotFound
	case nepse.KindInvalidSymbol:
		return http.StatusBadRequest
	case nepse.KindNotInitialized:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func respond(w http.ResponseWriter, v any, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(StatusFor(err))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
			"kind":  string(nepse.KindOf(err)),
		})
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// requestIDMiddleware tags each request with a short id
func (h *Host) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.New().String()[:8])
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Host) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		observ.Log("http_request", map[string]any{
			"request_id":  w.Header().Get("X-Request-ID"),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		observ.IncCounter("host_requests_total", map[string]string{"status": http.StatusText(rec.status)})
	})
}
