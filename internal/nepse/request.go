package nepse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// apiRequest describes one authenticated call
type apiRequest struct {
	endpoint string // metrics label
	method   string
	path     string
	body     any
	header   map[string]string
}

// fetchJSON runs req through the retry executor and decodes the response
// into T. Non-200 responses surface as *HTTPStatusError.
func fetchJSON[T any](ctx context.Context, c *Client, token string, r apiRequest) (T, error) {
	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			var zero T
			return zero, fmt.Errorf("encode %s body: %w", r.endpoint, err)
		}
		payload = b
	}

	return Execute(ctx, c.executor, r.endpoint, func(ctx context.Context) (T, error) {
		var out T

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, c.config.BaseURL+r.path, body)
		if err != nil {
			return out, err
		}
		c.setHeaders(req.Header, token)
		for k, v := range r.header {
			req.Header.Set(k, v)
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			return out, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			return out, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return out, fmt.Errorf("decode %s response: %w", r.endpoint, err)
		}
		return out, nil
	})
}
