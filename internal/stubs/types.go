package stubs

import (
	"strings"
	"time"

	"github.com/Rajchodisetti/nepse-client/internal/nepse"
)

// Route names used for call counters and failure injection
const (
	RouteProve      = "prove"
	RouteModule     = "module"
	RouteMarket     = "market_status"
	RouteSecurities = "securities"
	RouteDetail     = "security_detail"
	RouteIndex      = "index"
)

// DropConnection as an injected status closes the connection without a response
const DropConnection = 0

// Fixture payload types matching the upstream's detail response
type DetailSecurity struct {
	ID           int    `json:"id"`
	Symbol       string `json:"symbol"`
	SecurityName string `json:"securityName"`
	ActiveStatus string `json:"activeStatus"`
	ListingDate  string `json:"listingDate"`
	ISIN         string `json:"isin"`
}

type DetailDailyTrade struct {
	SecurityID       string  `json:"securityId"`
	OpenPrice        float64 `json:"openPrice"`
	HighPrice        float64 `json:"highPrice"`
	LowPrice         float64 `json:"lowPrice"`
	LastTradedPrice  float64 `json:"lastTradedPrice"`
	PreviousClose    float64 `json:"previousClose"`
	BusinessDate     string  `json:"businessDate"`
	ClosePrice       float64 `json:"closePrice"`
	FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow"`
}

type DetailPayload struct {
	Security             DetailSecurity   `json:"security"`
	DailyTrade           DetailDailyTrade `json:"securityDailyTradeDto"`
	StockListedShares    float64          `json:"stockListedShares"`
	PaidUpCapital        float64          `json:"paidUpCapital"`
	MarketCapitalization float64          `json:"marketCapitalization"`
	SecurityID           int              `json:"securityId"`
}

// Fixtures is the data a Server answers with
type Fixtures struct {
	Challenge  nepse.Challenge
	Market     nepse.MarketStatus
	Securities []nepse.SecurityBrief
	Details    map[int]DetailPayload
	Indices    []nepse.IndexDetail
}

// FixtureAccessToken is long enough that every fallback cut point falls inside it
var FixtureAccessToken = strings.Repeat("abcdefghijklmnopqrstuvwxyz0123456789", 4)

// DefaultFixtures returns a small, consistent data set
func DefaultFixtures() Fixtures {
	tokenType := "Bearer"
	return Fixtures{
		Challenge: nepse.Challenge{
			AccessToken:  FixtureAccessToken,
			RefreshToken: "refresh-" + FixtureAccessToken[:16],
			Salt:         "stub",
			Salt1:        12,
			Salt2:        34,
			Salt3:        56,
			Salt4:        78,
			Salt5:        90,
			TokenType:    &tokenType,
			PopupDocFor:  "none",
		},
		Market: nepse.MarketStatus{IsOpen: "CLOSE", AsOf: "2024-11-08T15:00:00", ID: 42},
		Securities: []nepse.SecurityBrief{
			{ID: 131, Symbol: "NABIL", Name: "Nabil Bank Limited", SecurityName: "Nabil Bank Limited", ActiveStatus: "A"},
			{ID: 2790, Symbol: "NIFRA", Name: "Nepal Infrastructure Bank Limited", SecurityName: "Nepal Infrastructure Bank Limited", ActiveStatus: "A"},
			{ID: 2893, Symbol: "NICA", Name: "NIC Asia Bank Ltd.", SecurityName: "NIC Asia Bank Ltd.", ActiveStatus: "A"},
		},
		Details: map[int]DetailPayload{
			2790: {
				Security: DetailSecurity{
					ID: 2790, Symbol: "NIFRA", SecurityName: "Nepal Infrastructure Bank Limited",
					ActiveStatus: "A", ListingDate: "2021-01-18", ISIN: "NPE332A00006",
				},
				DailyTrade: DetailDailyTrade{
					SecurityID: "2790", OpenPrice: 238, HighPrice: 242.9, LowPrice: 236,
					LastTradedPrice: 240.5, PreviousClose: 237.1, BusinessDate: "2024-11-08",
					ClosePrice: 240.5, FiftyTwoWeekHigh: 272, FiftyTwoWeekLow: 181.1,
				},
				StockListedShares: 216000000,
				SecurityID:        2790,
			},
		},
		Indices: []nepse.IndexDetail{
			{ID: 58, Index: "NEPSE Index", Close: 2712.31, High: 2731.07, Low: 2701.6, PreviousClose: 2698.84,
				Change: 13.47, PerChange: 0.5, FiftyTwoWeekHigh: 2858.21, FiftyTwoWeekLow: 1842.46,
				CurrentValue: 2712.31, GeneratedTime: "2024-11-08T15:00:00"},
			{ID: 57, Index: "Sensitive Index", Close: 467.2, High: 470.01, Low: 465.3, PreviousClose: 465.1,
				Change: 2.1, PerChange: 0.45, CurrentValue: 467.2, GeneratedTime: "2024-11-08T15:00:00"},
		},
	}
}

// ExpectedToken is the bearer token a correct client derives from ch
func ExpectedToken(ch nepse.Challenge) string {
	return nepse.DeriveToken(ch, nepse.FallbackDecoders())
}

func nowMillis() int64 { return time.Now().UnixMilli() }
