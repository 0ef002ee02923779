package observ

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestLog_EmitsEventJSON(t *testing.T) {
	var buf bytes.Buffer
	InitLogging(LogConfig{Level: "debug", Output: &buf})
	defer InitLogging(LogConfig{})

	Log("token_refreshed", map[string]any{"source": "fallback"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "token_refreshed", line["event"])
	assert.Equal(t, "fallback", line["source"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line, "ts")
}

func TestLog_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitLogging(LogConfig{Level: "warn", Output: &buf})
	defer InitLogging(LogConfig{})

	Debug("noisy", nil)
	Log("also_noisy", nil)
	assert.Zero(t, buf.Len())

	Error("request_failed", errors.New("boom"), map[string]any{"endpoint": "prove"})
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "error", line["level"])
}

func TestLog_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitLogging(LogConfig{Level: "chatty", Output: &buf})
	defer InitLogging(LogConfig{})

	Debug("hidden", nil)
	assert.Zero(t, buf.Len())
	Log("shown", nil)
	assert.NotZero(t, buf.Len())
}

func TestMetrics_CountersAndGauges(t *testing.T) {
	IncCounter("observ_test_calls_total", map[string]string{"kind": "a"})
	IncCounterBy("observ_test_calls_total", map[string]string{"kind": "a"}, 2)
	SetGauge("observ_test_level", 7, map[string]string{"name": "x"})
	RecordDuration("observ_test_latency", 40*time.Millisecond, map[string]string{"endpoint": "e"})

	body := scrape(t)
	assert.Contains(t, body, `observ_test_calls_total{kind="a"} 3`)
	assert.Contains(t, body, `observ_test_level{name="x"} 7`)
	assert.Contains(t, body, `observ_test_latency_ms_count{endpoint="e"} 1`)
}

func TestMetrics_MismatchedLabelsAreDropped(t *testing.T) {
	IncCounter("observ_test_shape_total", map[string]string{"a": "1"})
	assert.NotPanics(t, func() {
		IncCounter("observ_test_shape_total", map[string]string{"b": "2"})
	})
	body := scrape(t)
	assert.Contains(t, body, `observ_test_shape_total{a="1"} 1`)
	assert.NotContains(t, body, `b="2"`)
}

func TestMetrics_SeriesPerLabelSet(t *testing.T) {
	Observe("observ_test_sizes", 10, map[string]string{"route": "a"})
	Observe("observ_test_sizes", 20, map[string]string{"route": "b"})
	RecordHistogram("observ_test_sizes", 30, map[string]string{"route": "b"})
	RecordGauge("observ_test_depth", 1, nil)

	n, err := testutil.GatherAndCount(Gatherer(), "observ_test_sizes")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(Gatherer(), "observ_test_depth")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
