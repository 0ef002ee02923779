package nepse

import (
	"context"
	"net/http"
)

const (
	MarketOpenPath = "/api/nots/nepse-data/market-open"
	IndexPath      = "/api/nots/nepse-index"
)

// MarketStatus fetches whether the market is open.
func (c *Client) MarketStatus(ctx context.Context, st ClientState) (next ClientState, status MarketStatus, err error) {
	done := c.trace("market_status", nil)
	defer func() { done(err) }()

	next, token, err := c.tokens.GetToken(ctx, st)
	if err != nil {
		return st, MarketStatus{}, err
	}

	status, err = fetchJSON[MarketStatus](ctx, c, token, apiRequest{
		endpoint: "market_status",
		method:   http.MethodGet,
		path:     MarketOpenPath,
	})
	if err != nil {
		return st, MarketStatus{}, wrapOp(err, NewMarketStatusError, "failed to get market status")
	}
	return next, status, nil
}

// Index fetches the index listing
func (c *Client) Index(ctx context.Context, st ClientState) (next ClientState, indices []IndexDetail, err error) {
	done := c.trace("index", nil)
	defer func() { done(err) }()

	next, token, err := c.tokens.GetToken(ctx, st)
	if err != nil {
		return st, nil, err
	}

	indices, err = fetchJSON[[]IndexDetail](ctx, c, token, apiRequest{
		endpoint: "index",
		method:   http.MethodGet,
		path:     IndexPath,
	})
	if err != nil {
		return st, nil, wrapOp(err, NewIndexFetchError, "failed to get index details")
	}
	return next, indices, nil
}
