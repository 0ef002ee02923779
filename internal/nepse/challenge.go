package nepse

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ProvePath issues authentication challenges
const ProvePath = "/api/authenticate/prove"

// Challenge is the server's prove object. It is consumed once by DeriveToken.
type Challenge struct {
	AccessToken     string  `json:"accessToken"`
	RefreshToken    string  `json:"refreshToken"`
	Salt            string  `json:"salt"`
	Salt1           int     `json:"salt1"`
	Salt2           int     `json:"salt2"`
	Salt3           int     `json:"salt3"`
	Salt4           int     `json:"salt4"`
	Salt5           int     `json:"salt5"`
	ServerTime      int64   `json:"serverTime"` // epoch ms
	TokenType       *string `json:"tokenType"`
	IsDisplayActive bool    `json:"isDisplayActive"`
	PopupDocFor     string  `json:"popupDocFor"`
}

// ServerClock returns ServerTime as a time, or the zero time when absent
func (ch Challenge) ServerClock() time.Time {
	if ch.ServerTime <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ch.ServerTime)
}

// fetchChallenge makes exactly one prove call under the executor timeout.
// Every failure is ChallengeFetchFailed.
func (a *Authenticator) fetchChallenge(ctx context.Context) (Challenge, error) {
	ch, err := Execute(ctx, a.executor, "prove", func(ctx context.Context) (Challenge, error) {
		var ch Challenge
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+ProvePath, nil)
		if err != nil {
			return ch, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Referer", a.baseURL)

		resp, err := a.doer.Do(req)
		if err != nil {
			return ch, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return ch, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		err = json.NewDecoder(resp.Body).Decode(&ch)
		return ch, err
	})
	if err != nil {
		return Challenge{}, NewChallengeFetchError("failed to get prove object", err)
	}
	return ch, nil
}
