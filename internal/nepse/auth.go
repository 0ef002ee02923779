package nepse

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Rajchodisetti/nepse-client/internal/observ"
	"github.com/Rajchodisetti/nepse-client/internal/transport"
)

// TokenSource yields a bearer token for a state, returning the state that
// holds it.
type TokenSource interface {
	GetToken(ctx context.Context, st ClientState) (ClientState, string, error)
}

// Authenticator owns the token lifecycle: reuse a valid token, otherwise
// fetch a challenge and derive a new one.
type Authenticator struct {
	baseURL  string
	doer     transport.Doer
	executor *Executor
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthenticator builds an authenticator. The executor is used without
// retries; an outer retry covers the challenge call.
func NewAuthenticator(baseURL string, doer transport.Doer, ex *Executor, ttl time.Duration, now func() time.Time) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Authenticator{
		baseURL:  baseURL,
		doer:     doer,
		executor: ex.Once(),
		ttl:      ttl,
		now:      now,
	}
}

// GetToken returns st unchanged while its token is valid. Otherwise it
// refreshes and returns a new state; on error st is returned as is.
func (a *Authenticator) GetToken(ctx context.Context, st ClientState) (ClientState, string, error) {
	if tok := st.Token(); tok.Valid(a.now()) {
		observ.IncCounter("nepse_token_refresh_total", map[string]string{"outcome": "reused"})
		return st, tok.Value, nil
	}

	tok, err := a.Refresh(ctx, st)
	if err != nil {
		return st, "", err
	}
	return st.WithToken(tok), tok.Value, nil
}

// Refresh derives a new token without consulting or changing st's token.
func (a *Authenticator) Refresh(ctx context.Context, st ClientState) (BearerToken, error) {
	d := st.Decoders()
	if d == nil {
		return BearerToken{}, NewNotInitializedError()
	}

	// expiry counts from before the fetch so it never outlives the server's view
	now := a.now()
	ch, err := a.fetchChallenge(ctx)
	if err != nil {
		observ.IncCounter("nepse_token_refresh_total", map[string]string{"outcome": "error"})
		observ.Error("token_refresh_failed", err, map[string]any{"source": d.Source})
		return BearerToken{}, NewTokenAcquisitionError(err)
	}

	fields := map[string]any{"source": d.Source, "ttl_s": a.ttl.Seconds()}
	if server := ch.ServerClock(); !server.IsZero() {
		fields["clock_skew_ms"] = now.Sub(server).Milliseconds()
	}

	tok := BearerToken{Value: DeriveToken(ch, d), Expiry: now.Add(a.ttl)}
	observ.IncCounter("nepse_token_refresh_total", map[string]string{"outcome": "refreshed"})
	observ.Log("token_refreshed", fields)
	return tok, nil
}

// SingleFlightTokens collapses concurrent refreshes into one challenge
// fetch. Only the token is shared; each caller gets its own state back.
type SingleFlightTokens struct {
	auth  *Authenticator
	group singleflight.Group
}

func NewSingleFlightTokens(a *Authenticator) *SingleFlightTokens {
	return &SingleFlightTokens{auth: a}
}

func (s *SingleFlightTokens) GetToken(ctx context.Context, st ClientState) (ClientState, string, error) {
	if tok := st.Token(); tok.Valid(s.auth.now()) {
		return st, tok.Value, nil
	}
	if !st.Initialized() {
		return st, "", NewNotInitializedError()
	}

	v, err, shared := s.group.Do("token", func() (any, error) {
		return s.auth.Refresh(ctx, st)
	})
	if err != nil {
		return st, "", err
	}
	if shared {
		observ.Debug("token_refresh_shared", nil)
	}
	tok := v.(BearerToken)
	return st.WithToken(tok), tok.Value, nil
}
