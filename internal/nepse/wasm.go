package nepse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/Rajchodisetti/nepse-client/internal/observ"
)

// DecodeModulePath is where the upstream serves its decode module
const DecodeModulePath = "/assets/prod/css.wasm"

// maxModuleBytes bounds the module download
const maxModuleBytes = 4 << 20

var decodeExports = [5]string{"cdx", "rdx", "bdx", "ndx", "mdx"}

// wasmDecoder owns an instantiated module. wazero module instances are not
// safe for concurrent calls, so every call takes mu.
type wasmDecoder struct {
	mu      sync.Mutex
	runtime wazero.Runtime
	fns     [5]api.Function
}

// FetchDecodeModule downloads the module bytes. Runs once, under the
// executor's timeout.
func (c *Client) FetchDecodeModule(ctx context.Context) ([]byte, error) {
	url := c.config.BaseURL + DecodeModulePath
	body, err := Execute(ctx, c.executor.Once(), "decode_module", func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Referer", c.config.BaseURL+"/")

		resp, err := c.doer.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxModuleBytes))
	})
	if err != nil {
		return nil, NewDecodeModuleError("fetch "+url, err)
	}
	return body, nil
}

// LoadWASMDecoders instantiates module bytes and binds the five exports.
// Any failure closes the runtime and returns DecodeModuleUnavailable; a
// partial set is never returned.
func LoadWASMDecoders(ctx context.Context, module []byte) (*DecodeFunctionSet, error) {
	if len(module) == 0 {
		return nil, NewDecodeModuleError("empty module", nil)
	}

	r := wazero.NewRuntime(ctx)
	mod, err := r.Instantiate(ctx, module)
	if err != nil {
		_ = r.Close(ctx)
		return nil, NewDecodeModuleError("instantiate module", err)
	}

	w := &wasmDecoder{runtime: r}
	for i, name := range decodeExports {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			_ = r.Close(ctx)
			return nil, NewDecodeModuleError("missing export "+name, nil)
		}
		if err := checkSignature(fn.Definition()); err != nil {
			_ = r.Close(ctx)
			return nil, NewDecodeModuleError("export "+name, err)
		}
		w.fns[i] = fn
	}

	return &DecodeFunctionSet{
		C:      w.bind(0),
		R:      w.bind(1),
		B:      w.bind(2),
		N:      w.bind(3),
		M:      w.bind(4),
		Source: SourceWASM,
	}, nil
}

func checkSignature(def api.FunctionDefinition) error {
	params, results := def.ParamTypes(), def.ResultTypes()
	if len(params) != 5 || len(results) != 1 || results[0] != api.ValueTypeI32 {
		return fmt.Errorf("want (i32 x5) -> i32, got %d params %d results", len(params), len(results))
	}
	for _, p := range params {
		if p != api.ValueTypeI32 {
			return fmt.Errorf("param type %s, want i32", api.ValueTypeName(p))
		}
	}
	return nil
}

// bind adapts export i to a DecodeFunc. A trap is logged and yields -1,
// which DeriveToken treats as a malformed cut point.
func (w *wasmDecoder) bind(i int) DecodeFunc {
	name := decodeExports[i]
	return func(s1, s2, s3, s4, s5 int) int {
		w.mu.Lock()
		defer w.mu.Unlock()

		out, err := w.fns[i].Call(context.Background(),
			api.EncodeI32(int32(s1)), api.EncodeI32(int32(s2)), api.EncodeI32(int32(s3)),
			api.EncodeI32(int32(s4)), api.EncodeI32(int32(s5)))
		if err != nil || len(out) != 1 {
			observ.Warn("decode_call_failed", map[string]any{"export": name, "error": fmt.Sprint(err)})
			return -1
		}
		return int(api.DecodeI32(out[0]))
	}
}
