package nepse

// MarketStatus is the market-open payload. IsOpen is the upstream's string
// flag ("OPEN", "CLOSE", ...).
type MarketStatus struct {
	IsOpen string `json:"isOpen"`
	AsOf   string `json:"asOf"`
	ID     int    `json:"id"`
}

// SecurityBrief is one row of the security list
type SecurityBrief struct {
	ID           int    `json:"id"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	SecurityName string `json:"securityName"`
	ActiveStatus string `json:"activeStatus"`
}

// SecurityDetail is the flattened security-detail response. Dates are kept
// as the upstream sends them.
type SecurityDetail struct {
	ID               int     `json:"id"`
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	ActiveStatus     string  `json:"activeStatus"`
	ListingDate      string  `json:"listingDate"`
	ClosePrice       float64 `json:"closePrice"`
	BusinessDate     string  `json:"businessDate"`
	FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow"`
	LastTradePrice   float64 `json:"lastTradePrice"`
}

// securityDetailResponse holds the parts of the detail payload we keep
type securityDetailResponse struct {
	Security struct {
		ID           int    `json:"id"`
		Symbol       string `json:"symbol"`
		SecurityName string `json:"securityName"`
		ActiveStatus string `json:"activeStatus"`
		ListingDate  string `json:"listingDate"`
	} `json:"security"`
	DailyTrade struct {
		BusinessDate     string  `json:"businessDate"`
		ClosePrice       float64 `json:"closePrice"`
		LastTradedPrice  float64 `json:"lastTradedPrice"`
		FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow"`
	} `json:"securityDailyTradeDto"`
}

func (r securityDetailResponse) flatten() SecurityDetail {
	return SecurityDetail{
		ID:               r.Security.ID,
		Symbol:           r.Security.Symbol,
		Name:             r.Security.SecurityName,
		ActiveStatus:     r.Security.ActiveStatus,
		ListingDate:      r.Security.ListingDate,
		ClosePrice:       r.DailyTrade.ClosePrice,
		BusinessDate:     r.DailyTrade.BusinessDate,
		FiftyTwoWeekHigh: r.DailyTrade.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  r.DailyTrade.FiftyTwoWeekLow,
		LastTradePrice:   r.DailyTrade.LastTradedPrice,
	}
}

// IndexDetail is one entry of the index listing
type IndexDetail struct {
	ID               int     `json:"id"`
	AuditID          any     `json:"auditId"`
	ExchangeIndexID  any     `json:"exchangeIndexId"`
	GeneratedTime    string  `json:"generatedTime"`
	Index            string  `json:"index"`
	Close            float64 `json:"close"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	PreviousClose    float64 `json:"previousClose"`
	Change           float64 `json:"change"`
	PerChange        float64 `json:"perChange"`
	FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow"`
	CurrentValue     float64 `json:"currentValue"`
}
