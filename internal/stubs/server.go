package stubs

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/Rajchodisetti/nepse-client/internal/nepse"
	"github.com/Rajchodisetti/nepse-client/internal/observ"
)

// Server is an in-process fake of the NEPSE API. It counts calls per route,
// can fail the next N calls of a route, and optionally checks the bearer
// token against the one derivable from its challenge.
type Server struct {
	mu          sync.Mutex
	router      *mux.Router
	fixtures    Fixtures
	module      []byte
	requireAuth bool
	calls       map[string]int
	failures    map[string][]int
	lastHeader  map[string]http.Header
	lastBody    map[string][]byte
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithFixtures replaces the default data set
func WithFixtures(f Fixtures) ServerOption {
	return func(s *Server) { s.fixtures = f }
}

// WithModule serves module instead of the canonical decode module
func WithModule(module []byte) ServerOption {
	return func(s *Server) { s.module = module }
}

// WithAuth makes data routes answer 401 unless the derived token is presented
func WithAuth() ServerOption {
	return func(s *Server) { s.requireAuth = true }
}

// NewServer creates a stub upstream
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		fixtures:   DefaultFixtures(),
		module:     DecodeModule(false),
		calls:      map[string]int{},
		failures:   map[string][]int{},
		lastHeader: map[string]http.Header{},
		lastBody:   map[string][]byte{},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", health).Methods(http.MethodGet)
	r.HandleFunc(nepse.ProvePath, s.route(RouteProve, false, s.prove)).Methods(http.MethodGet)
	r.HandleFunc(nepse.DecodeModulePath, s.route(RouteModule, false, s.decodeModule)).Methods(http.MethodGet)
	r.HandleFunc(nepse.MarketOpenPath, s.route(RouteMarket, true, s.marketStatus)).Methods(http.MethodGet)
	r.HandleFunc("/api/nots/security", s.route(RouteSecurities, true, s.securities)).Methods(http.MethodGet)
	r.HandleFunc("/api/nots/security/{id:[0-9]+}", s.route(RouteDetail, true, s.securityDetail)).Methods(http.MethodPost)
	r.HandleFunc(nepse.IndexPath, s.route(RouteIndex, true, s.index)).Methods(http.MethodGet)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Calls returns how many requests reached route
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// FailNext makes the next n calls to route answer with status.
// DropConnection closes the connection instead.
func (s *Server) FailNext(route string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures[route] = append(s.failures[route], status)
	}
}

// LastRequest returns the headers and body of the latest call to route
func (s *Server) LastRequest(route string) (http.Header, []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeader[route], s.lastBody[route]
}

// SetChallenge replaces the prove object served from now on
func (s *Server) SetChallenge(ch nepse.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures.Challenge = ch
}

// SetMarketStatus replaces the market-open payload
func (s *Server) SetMarketStatus(m nepse.MarketStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures.Market = m
}

// Token is the bearer token clients should derive from the current challenge
func (s *Server) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ExpectedToken(s.fixtures.Challenge)
}

// route wraps a handler with counting, recording, failure injection and auth
func (s *Server) route(name string, authed bool, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()

		s.mu.Lock()
		s.calls[name]++
		s.lastHeader[name] = r.Header.Clone()
		s.lastBody[name] = body
		status, fail := s.popFailure(name)
		want := "Salter " + ExpectedToken(s.fixtures.Challenge)
		s.mu.Unlock()

		if fail {
			observ.Debug("stub_injected_failure", map[string]any{"route": name, "status": status})
			if status == DropConnection {
				dropConnection(w)
				return
			}
			http.Error(w, http.StatusText(status), status)
			return
		}
		if authed && s.requireAuth && r.Header.Get("Authorization") != want {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Server) popFailure(name string) (int, bool) {
	q := s.failures[name]
	if len(q) == 0 {
		return 0, false
	}
	s.failures[name] = q[1:]
	return q[0], true
}

func (s *Server) prove(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	ch := s.fixtures.Challenge
	s.mu.Unlock()
	if ch.ServerTime == 0 {
		ch.ServerTime = nowMillis()
	}
	writeJSON(w, ch)
}

func (s *Server) decodeModule(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/wasm")
	_, _ = w.Write(s.module)
}

func (s *Server) marketStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	m := s.fixtures.Market
	s.mu.Unlock()
	writeJSON(w, m)
}

func (s *Server) securities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.fixtures.Securities)
}

func (s *Server) securityDetail(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	detail, ok := s.fixtures.Details[id]
	if !ok {
		http.Error(w, "security not found", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.fixtures.Indices)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observ.Error("stub_write_failed", err, nil)
	}
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "cannot drop connection", http.StatusInternalServerError)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}
