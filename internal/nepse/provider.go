package nepse

import (
	"context"

	"github.com/Rajchodisetti/nepse-client/internal/observ"
)

// Initialize loads the decode functions and returns a fresh state.
//
// With DecodeAuto any module failure is logged and the lookup table is
// used instead, so initialization only fails under DecodeWASM.
func (c *Client) Initialize(ctx context.Context) (ClientState, error) {
	d, err := c.loadDecoders(ctx)
	if err != nil {
		return ClientState{}, err
	}
	observ.SetGauge("nepse_decode_source", 1, map[string]string{"source": d.Source})
	observ.Log("nepse_initialized", map[string]any{
		"base_url":      c.config.BaseURL,
		"decode_source": d.Source,
	})
	return NewState(d), nil
}

func (c *Client) loadDecoders(ctx context.Context) (*DecodeFunctionSet, error) {
	if c.config.DecodeSource == DecodeFallback {
		return FallbackDecoders(), nil
	}

	d, err := c.loadWASM(ctx)
	if err == nil {
		return d, nil
	}
	if c.config.DecodeSource == DecodeWASM {
		return nil, err
	}

	observ.Warn("decode_module_fallback", map[string]any{"error": err.Error()})
	return FallbackDecoders(), nil
}

func (c *Client) loadWASM(ctx context.Context) (*DecodeFunctionSet, error) {
	module, err := c.FetchDecodeModule(ctx)
	if err != nil {
		return nil, err
	}
	return LoadWASMDecoders(ctx, module)
}
