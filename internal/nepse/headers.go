package nepse

import "net/http"

// setHeaders applies the browser-like headers the upstream's bot filter
// expects. Accept-Encoding is left to net/http so gzip is decoded for us.
func (c *Client) setHeaders(h http.Header, token string) {
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Referer", c.config.BaseURL+"/")
	h.Set("Authorization", "Salter "+token)
	h.Set("Content-Type", "application/json")
}
