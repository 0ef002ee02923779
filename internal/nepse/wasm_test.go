package nepse_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/nepse-client/internal/nepse"
	"github.com/Rajchodisetti/nepse-client/internal/stubs"
)

func TestWASMDecoders_MatchFallback(t *testing.T) {
	h := newHarness(t, nepse.Config{DecodeSource: nepse.DecodeWASM})

	st := h.init(t)
	wasm := st.Decoders()
	require.Equal(t, nepse.SourceWASM, wasm.Source)
	assert.Equal(t, 1, h.stub.Calls(stubs.RouteModule))

	fallback := nepse.FallbackDecoders()
	for s2 := 0; s2 <= 999; s2++ {
		s1, s3, s4, s5 := s2*7%1000, (s2+311)%1000, (s2*13)%1000, 999-s2
		want := fallback.CutPoints(s1, s2, s3, s4, s5)
		got := wasm.CutPoints(s1, s2, s3, s4, s5)
		if !assert.Equal(t, want, got, "salts %d %d %d %d %d", s1, s2, s3, s4, s5) {
			return
		}
	}
}

func TestWASMDecoders_NegativeSaltTrapsToMalformed(t *testing.T) {
	d, err := nepse.LoadWASMDecoders(context.Background(), stubs.DecodeModule(false))
	require.NoError(t, err)

	assert.Equal(t, nepse.FallbackDecoders().CutPoints(0, -7, 0, 0, 0), d.CutPoints(0, -7, 0, 0, 0))
}

func TestWASMDecoders_DoubledModuleDisagrees(t *testing.T) {
	d, err := nepse.LoadWASMDecoders(context.Background(), stubs.DecodeModule(true))
	require.NoError(t, err)

	assert.NotEqual(t, nepse.FallbackDecoders().CutPoints(12, 34, 56, 78, 90), d.CutPoints(12, 34, 56, 78, 90))
}

func TestWASMDecoders_FailClosed(t *testing.T) {
	tests := []struct {
		name   string
		module []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not a wasm module")},
		{"truncated", stubs.DecodeModule(false)[:20]},
		{"missing export", stubs.BuildDecodeModule(stubs.ModuleOptions{Omit: "mdx"})},
		{"wrong signature", stubs.BuildDecodeModule(stubs.ModuleOptions{BadSignature: true})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := nepse.LoadWASMDecoders(context.Background(), tt.module)
			assert.Nil(t, d)
			assert.ErrorIs(t, err, nepse.ErrDecodeModuleUnavailable)
		})
	}
}

func TestInitialize_DecodeSources(t *testing.T) {
	t.Run("auto falls back on bad module", func(t *testing.T) {
		h := newHarness(t, nepse.Config{DecodeSource: nepse.DecodeAuto},
			stubs.WithModule(stubs.BuildDecodeModule(stubs.ModuleOptions{Omit: "cdx"})))

		st := h.init(t)
		assert.Equal(t, nepse.SourceFallback, st.Decoders().Source)
	})

	t.Run("auto falls back on fetch failure", func(t *testing.T) {
		h := newHarness(t, nepse.Config{DecodeSource: nepse.DecodeAuto})
		h.stub.FailNext(stubs.RouteModule, http.StatusNotFound, 1)

		st := h.init(t)
		assert.Equal(t, nepse.SourceFallback, st.Decoders().Source)
		assert.Equal(t, 1, h.stub.Calls(stubs.RouteModule))
	})

	t.Run("auto prefers module", func(t *testing.T) {
		h := newHarness(t, nepse.Config{DecodeSource: nepse.DecodeAuto})
		st := h.init(t)
		assert.Equal(t, nepse.SourceWASM, st.Decoders().Source)
	})

	t.Run("wasm required", func(t *testing.T) {
		h := newHarness(t, nepse.Config{DecodeSource: nepse.DecodeWASM})
		h.stub.FailNext(stubs.RouteModule, http.StatusInternalServerError, 1)

		st, err := h.client.Initialize(context.Background())
		assert.ErrorIs(t, err, nepse.ErrDecodeModuleUnavailable)
		assert.False(t, st.Initialized())
	})

	t.Run("fallback skips fetch", func(t *testing.T) {
		h := newHarness(t, nepse.Config{DecodeSource: nepse.DecodeFallback})
		st := h.init(t)
		assert.Equal(t, nepse.SourceFallback, st.Decoders().Source)
		assert.Zero(t, h.stub.Calls(stubs.RouteModule))
	})
}
