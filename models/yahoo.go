package models

// Yahoo Finance v7 API response shapes. Only the fields the pipeline reads
// are declared; the provider sends many more.

// RawContract is a single option contract as returned inside an options
// chain. Expiration is epoch seconds.
type RawContract struct {
	ContractSymbol    string  `json:"contractSymbol"`
	Strike            float64 `json:"strike"`
	Currency          string  `json:"currency,omitempty"`
	LastPrice         float64 `json:"lastPrice"`
	Change            float64 `json:"change"`
	PercentChange     float64 `json:"percentChange"`
	Volume            int64   `json:"volume"`
	OpenInterest      int64   `json:"openInterest"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	ContractSize      string  `json:"contractSize,omitempty"`
	Expiration        int64   `json:"expiration"`
	LastTradeDate     int64   `json:"lastTradeDate"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	InTheMoney        bool    `json:"inTheMoney"`
}

// ExpirationChain groups the calls and puts quoted for one expiration date.
type ExpirationChain struct {
	ExpirationDate int64         `json:"expirationDate"`
	Calls          []RawContract `json:"calls"`
	Puts           []RawContract `json:"puts"`
}

// OptionChain is one result element of the v7 options endpoint. When fetched
// without an expiration parameter, Options carries the nearest expiration
// first and ExpirationDates lists every available one.
type OptionChain struct {
	UnderlyingSymbol string            `json:"underlyingSymbol"`
	ExpirationDates  []int64           `json:"expirationDates"`
	Strikes          []float64         `json:"strikes"`
	Quote            Quote             `json:"quote"`
	Options          []ExpirationChain `json:"options"`
}

// Front returns the first expiration slice of the chain, or nil when the
// provider sent an empty options array.
func (c *OptionChain) Front() *ExpirationChain {
	if c == nil || len(c.Options) == 0 {
		return nil
	}
	return &c.Options[0]
}

// Quote is a market quote for an underlying or an individual contract.
type Quote struct {
	Symbol                     string  `json:"symbol"`
	ShortName                  string  `json:"shortName,omitempty"`
	Currency                   string  `json:"currency,omitempty"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChange        float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketVolume        int64   `json:"regularMarketVolume"`
	RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	MarketState                string  `json:"marketState,omitempty"`
}
