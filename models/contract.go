package models

import (
	"encoding/json"
	"math"
)

// OptionType distinguishes calls from puts. It is always derived from the
// OCC contract symbol, never taken from the provider as a separate field.
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// TradeAction classifies the dominant side of a contract's flow. A contract
// whose session volume exceeds its open interest was, on balance, bought to
// open; ties classify as SOLD.
type TradeAction string

const (
	ActionBought TradeAction = "BOUGHT"
	ActionSold   TradeAction = "SOLD"
)

// Contract is the canonical normalized options contract produced by the
// processor from a provider RawContract plus the underlying quote.
type Contract struct {
	Ticker         string     `json:"ticker"`
	ContractSymbol string     `json:"contractSymbol"`
	Strike         float64    `json:"strike"`
	Expiration     string     `json:"expiration"`
	Type           OptionType `json:"type"`

	LastPrice         float64 `json:"lastPrice"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	Volume            int64   `json:"volume"`
	OpenInterest      int64   `json:"openInterest"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	PercentChange     float64 `json:"percentChange"`
	InTheMoney        bool    `json:"inTheMoney"`
	UnderlyingPrice   float64 `json:"underlyingPrice"`

	// Derived fields. TotalPremium is lastPrice * volume * 100, the option
	// contract multiplier being 100 shares.
	TotalPremium     float64     `json:"totalPremium"`
	DaysToExpiration int         `json:"daysToExpiration"`
	VolumeToOI       float64     `json:"volumeToOpenInterest"`
	UnusualVolume    bool        `json:"unusualVolume"`
	Action           TradeAction `json:"action"`
}

// SymbolVolume holds the per-symbol volume breakdown a summary fetch cycle
// produces. A failed symbol contributes the zero value.
type SymbolVolume struct {
	Symbol string `json:"symbol"`
	Volume int64  `json:"volume"`
	Calls  int64  `json:"calls"`
	Puts   int64  `json:"puts"`
}

// MostActive identifies the symbol with the largest individual option volume.
type MostActive struct {
	Symbol string `json:"symbol"`
	Volume int64  `json:"volume"`
}

// Ratio is a float64 that marshals non-finite values (a put/call ratio with
// zero call volume divides by zero) as JSON null instead of failing, which is
// what encoding/json does for a bare ±Inf or NaN.
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// Finite reports whether the ratio holds a representable value.
func (r Ratio) Finite() bool {
	f := float64(r)
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// SummaryStats is the cross-symbol aggregate computed by the summary view.
type SummaryStats struct {
	TotalVolume  int64      `json:"totalVolume"`
	TotalCalls   int64      `json:"totalCalls"`
	TotalPuts    int64      `json:"totalPuts"`
	PutCallRatio Ratio      `json:"putCallRatio"`
	MostActive   MostActive `json:"mostActive"`
}
