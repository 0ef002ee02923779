package nepse

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Rajchodisetti/nepse-client/internal/observ"
)

const SecuritiesPath = "/api/nots/security?nonDelisted=false"

// bodyIDTable is indexed by the market-status id
var bodyIDTable = [100]int{
	147, 117, 239, 143, 157, 312, 161, 612, 512, 804,
	411, 527, 170, 511, 421, 667, 764, 621, 301, 106,
	133, 793, 411, 511, 312, 423, 344, 346, 653, 758,
	342, 222, 236, 811, 711, 611, 122, 447, 128, 199,
	183, 135, 489, 703, 800, 745, 152, 863, 134, 211,
	142, 564, 375, 793, 212, 153, 138, 153, 648, 611,
	151, 649, 318, 143, 117, 756, 119, 141, 717, 113,
	112, 146, 162, 660, 693, 261, 362, 354, 251, 641,
	157, 178, 631, 192, 734, 445, 192, 883, 187, 122,
	591, 731, 852, 384, 565, 596, 451, 772, 624, 691,
}

// BodyID computes the id the security-detail endpoint expects in its body:
// table[marketID] + marketID + 2*day-of-month.
func BodyID(marketID int, now time.Time) (int, error) {
	if marketID < 0 || marketID >= len(bodyIDTable) {
		return 0, NewSecurityDetailError(fmt.Sprintf("market id %d outside body id table", marketID), nil)
	}
	return bodyIDTable[marketID] + marketID + 2*now.Day(), nil
}

// Securities returns the security list, from the state's cache while fresh.
func (c *Client) Securities(ctx context.Context, st ClientState) (next ClientState, list []SecurityBrief, err error) {
	if cached, ok := st.CachedSecurities(c.now()); ok {
		observ.IncCounter("nepse_cache_lookups_total", map[string]string{"cache": "securities", "result": "hit"})
		return st, cached, nil
	}
	observ.IncCounter("nepse_cache_lookups_total", map[string]string{"cache": "securities", "result": "miss"})

	done := c.trace("securities", nil)
	defer func() { done(err) }()

	next, token, err := c.tokens.GetToken(ctx, st)
	if err != nil {
		return st, nil, err
	}

	list, err = fetchJSON[[]SecurityBrief](ctx, c, token, apiRequest{
		endpoint: "securities",
		method:   http.MethodGet,
		path:     SecuritiesPath,
	})
	if err != nil {
		return st, nil, wrapOp(err, NewSecurityBriefsError, "failed to get security briefs")
	}

	next = next.withSecurities(list, c.config.SecuritiesTTL, c.now())
	observ.SetGauge("nepse_securities_cached", float64(len(list)), nil)
	return next, list, nil
}

// SecurityDetail looks symbol up in the security list (case-insensitively),
// then posts the date-dependent body id to the detail endpoint.
func (c *Client) SecurityDetail(ctx context.Context, st ClientState, symbol string) (next ClientState, detail SecurityDetail, err error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return st, SecurityDetail{}, NewInvalidSymbolError(symbol)
	}

	done := c.trace("security_detail", map[string]any{"symbol": symbol})
	defer func() { done(err) }()

	next, list, err := c.Securities(ctx, st)
	if err != nil {
		return st, SecurityDetail{}, wrapOp(err, NewSecurityDetailError, "failed to get security list")
	}
	brief, ok := findSecurity(list, symbol)
	if !ok {
		return st, SecurityDetail{}, NewSecurityNotFoundError(symbol)
	}

	next, market, err := c.MarketStatus(ctx, next)
	if err != nil {
		return st, SecurityDetail{}, wrapOp(err, NewSecurityDetailError, "failed to get market status")
	}

	next, token, err := c.tokens.GetToken(ctx, next)
	if err != nil {
		return st, SecurityDetail{}, err
	}

	bodyID, err := BodyID(market.ID, c.now())
	if err != nil {
		return st, SecurityDetail{}, err
	}

	resp, err := fetchJSON[securityDetailResponse](ctx, c, token, apiRequest{
		endpoint: "security_detail",
		method:   http.MethodPost,
		path:     fmt.Sprintf("/api/nots/security/%d", brief.ID),
		body:     map[string]int{"id": bodyID},
		header: map[string]string{
			"Origin":  c.config.BaseURL,
			"Referer": fmt.Sprintf("%s/company/detail/%d", c.config.BaseURL, brief.ID),
		},
	})
	if err != nil {
		return st, SecurityDetail{}, wrapOp(err, NewSecurityDetailError, "failed to get security detail")
	}
	return next, resp.flatten(), nil
}

func findSecurity(list []SecurityBrief, symbol string) (SecurityBrief, bool) {
	for _, s := range list {
		if strings.EqualFold(s.Symbol, symbol) {
			return s, true
		}
	}
	return SecurityBrief{}, false
}
