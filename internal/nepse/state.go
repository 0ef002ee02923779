package nepse

import (
	"slices"
	"time"
)

// BearerToken is a derived access token and its absolute expiry
type BearerToken struct {
	Value  string
	Expiry time.Time
}

// Valid reports whether the token may be sent at now
func (t BearerToken) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.Expiry)
}

// ClientState is an immutable snapshot threaded through every operation.
// Operations return a new state and never modify their input, so a failed
// call leaves the caller's state usable. The zero value is uninitialized.
type ClientState struct {
	decoders   *DecodeFunctionSet
	token      BearerToken
	securities Cache[[]SecurityBrief]
}

// NewState returns an initialized state holding d
func NewState(d *DecodeFunctionSet) ClientState {
	return ClientState{decoders: d}
}

// Initialized reports whether decode functions are loaded
func (s ClientState) Initialized() bool { return s.decoders != nil }

// Decoders returns the shared decode set, nil when uninitialized
func (s ClientState) Decoders() *DecodeFunctionSet { return s.decoders }

// Token returns the current bearer token, possibly empty or expired
func (s ClientState) Token() BearerToken { return s.token }

// WithToken returns a copy of s holding t
func (s ClientState) WithToken(t BearerToken) ClientState {
	s.token = t
	return s
}

// CachedSecurities returns the cached security list while it is fresh.
// The returned slice is a copy.
func (s ClientState) CachedSecurities(now time.Time) ([]SecurityBrief, bool) {
	list, ok := s.securities.Get(securitiesCacheKey, now)
	if !ok {
		return nil, false
	}
	return slices.Clone(list), true
}

func (s ClientState) withSecurities(list []SecurityBrief, ttl time.Duration, now time.Time) ClientState {
	s.securities = s.securities.Set(securitiesCacheKey, slices.Clone(list), ttl, now)
	return s
}
