package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/nepse-client/internal/nepse"
	"github.com/Rajchodisetti/nepse-client/internal/stubs"
)

func newTestHost(t *testing.T) (*Host, *stubs.Server) {
	t.Helper()
	stub := stubs.NewServer(stubs.WithAuth())
	upstream := httptest.NewServer(stub)
	t.Cleanup(upstream.Close)

	client, err := nepse.New(nepse.Config{BaseURL: upstream.URL, DecodeSource: nepse.DecodeFallback},
		nepse.WithDoer(upstream.Client()))
	require.NoError(t, err)
	st, err := client.Initialize(context.Background())
	require.NoError(t, err)
	return NewHost(client, st), stub
}

func call(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHost_MarketStatusKeepsToken(t *testing.T) {
	host, stub := newTestHost(t)

	rec := call(t, host, "/api/market-status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var status nepse.MarketStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 42, status.ID)

	rec = call(t, host, "/api/index")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stub.Calls(stubs.RouteProve), "host threads the refreshed state")
	assert.NotEmpty(t, host.State().Token().Value)
}

func TestHost_Securities(t *testing.T) {
	host, stub := newTestHost(t)

	for i := 0; i < 3; i++ {
		rec := call(t, host, "/api/securities")
		require.Equal(t, http.StatusOK, rec.Code)
		var list []nepse.SecurityBrief
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Len(t, list, 3)
	}
	assert.Equal(t, 1, stub.Calls(stubs.RouteSecurities))
}

func TestHost_SecurityDetail(t *testing.T) {
	host, _ := newTestHost(t)

	rec := call(t, host, "/api/securities/nifra")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail nepse.SecurityDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "NIFRA", detail.Symbol)

	rec = call(t, host, "/api/securities/UNKNOWN")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "security_not_found", body["kind"])
}

func TestHost_UpstreamFailureKeepsState(t *testing.T) {
	host, stub := newTestHost(t)
	require.Equal(t, http.StatusOK, call(t, host, "/api/market-status").Code)
	before := host.State()

	stub.FailNext(stubs.RouteIndex, http.StatusInternalServerError, 1)
	rec := call(t, host, "/api/index")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, before, host.State())
}

func TestHost_HealthAndMetrics(t *testing.T) {
	host, _ := newTestHost(t)

	rec := call(t, host, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	call(t, host, "/api/market-status")
	rec = call(t, host, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nepse_requests_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(nepse.NewSecurityNotFoundError("X")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(nepse.NewInvalidSymbolError("")))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(nepse.NewNotInitializedError()))
	assert.Equal(t, http.StatusBadGateway, StatusFor(nepse.NewIndexFetchError("x", nil)))
	assert.Equal(t, http.StatusBadGateway, StatusFor(errors.New("plain")))
}
