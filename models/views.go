package models

import "time"

// View response payloads. These are the units the freshness cache stores, so
// each carries the market status and timestamp observed when it was built.

// SummaryResponse is the cross-symbol volume aggregate view.
type SummaryResponse struct {
	TotalVolume  int64      `json:"totalVolume"`
	TotalCalls   int64      `json:"totalCalls"`
	TotalPuts    int64      `json:"totalPuts"`
	PutCallRatio Ratio      `json:"putCallRatio"`
	MostActive   MostActive `json:"mostActive"`
	MarketStatus bool       `json:"marketStatus"`
	LastUpdate   time.Time  `json:"lastUpdate"`
}

// ChainResponse is the single-symbol options chain view. Calls and puts are
// the provider contracts for the front expiration, passed through unshaped.
type ChainResponse struct {
	Symbol       string        `json:"symbol"`
	Underlying   Quote         `json:"underlying"`
	Expirations  []int64       `json:"expirations"`
	Calls        []RawContract `json:"calls"`
	Puts         []RawContract `json:"puts"`
	MarketStatus bool          `json:"marketStatus"`
	LastUpdate   time.Time     `json:"lastUpdate"`
}

// MoversResponse carries a ranked list of contracts for the top-movers and
// long-dated views.
type MoversResponse struct {
	MarketStatus bool       `json:"marketStatus"`
	LastUpdate   time.Time  `json:"lastUpdate"`
	Data         []Contract `json:"data"`
}

// LargeTrade is a ranked contract enriched with the figures the long-dated
// large view reports alongside the premium.
type LargeTrade struct {
	Contract
	Notional          float64 `json:"notional"`
	DistanceFromPrice string  `json:"distanceFromPrice"`
}

// LargeTradesResponse is the long-dated large trades view.
type LargeTradesResponse struct {
	Count        int          `json:"count"`
	TotalValue   float64      `json:"totalValue"`
	MarketStatus bool         `json:"marketStatus"`
	LastUpdate   time.Time    `json:"lastUpdate"`
	Data         []LargeTrade `json:"data"`
}

// ScreenResponse is the ad-hoc screen view: every matching contract,
// unranked, in fetch order.
type ScreenResponse struct {
	Count        int        `json:"count"`
	Results      []Contract `json:"results"`
	Timestamp    time.Time  `json:"timestamp"`
	MarketStatus bool       `json:"marketStatus"`
}

// DetailsResponse is the single-contract lookup view.
type DetailsResponse struct {
	Symbol       string    `json:"symbol"`
	Contract     Contract  `json:"contract"`
	Underlying   Quote     `json:"underlying"`
	MarketStatus bool      `json:"marketStatus"`
	LastUpdate   time.Time `json:"lastUpdate"`
}

// ExpirationDate pairs the provider's epoch with its calendar form.
type ExpirationDate struct {
	Epoch int64  `json:"epoch"`
	Date  string `json:"date"`
}

// ExpirationsResponse lists every expiration a symbol's chain quotes.
type ExpirationsResponse struct {
	Symbol       string           `json:"symbol"`
	Expirations  []ExpirationDate `json:"expirations"`
	MarketStatus bool             `json:"marketStatus"`
	LastUpdate   time.Time        `json:"lastUpdate"`
}
