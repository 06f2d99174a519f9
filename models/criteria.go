package models

import (
	"fmt"
	"sort"
	"strings"
)

// Option type and moneyness filter values accepted by ScreenCriteria.
const (
	FilterAll   = "all"
	FilterCalls = "calls"
	FilterPuts  = "puts"
	FilterITM   = "itm"
	FilterOTM   = "otm"
)

// ScreenCriteria is a bag of independent constraints combined with logical
// AND. The zero value of a constraint means "no restriction": minimums at 0,
// maximums at 0 (disabled), empty type/moneyness filters admit everything.
type ScreenCriteria struct {
	Symbols         []string `json:"symbols"`
	MinVolume       int64    `json:"minVolume"`
	MinOpenInterest int64    `json:"minOpenInterest"`
	MinIV           float64  `json:"minIV"`
	MaxIV           float64  `json:"maxIV"`
	MinPrice        float64  `json:"minPrice"`
	MaxPrice        float64  `json:"maxPrice"`
	MinDays         int      `json:"minDays"`
	MaxDays         int      `json:"maxDays"`
	OptionType      string   `json:"optionType"`
	Moneyness       string   `json:"moneyness"`
}

// CacheKey renders the criteria in a canonical form so that equivalent
// requests share a cache entry and distinct criteria never collide. Symbols
// are upper-cased and sorted; unset filters render as their zero values.
func (c ScreenCriteria) CacheKey() string {
	symbols := make([]string, len(c.Symbols))
	for i, s := range c.Symbols {
		symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	sort.Strings(symbols)

	optionType := c.OptionType
	if optionType == "" {
		optionType = FilterAll
	}
	moneyness := c.Moneyness
	if moneyness == "" {
		moneyness = FilterAll
	}

	return fmt.Sprintf("sym=%s|vol=%d|oi=%d|iv=%g-%g|px=%g-%g|dte=%d-%d|type=%s|mny=%s",
		strings.Join(symbols, ","),
		c.MinVolume, c.MinOpenInterest,
		c.MinIV, c.MaxIV,
		c.MinPrice, c.MaxPrice,
		c.MinDays, c.MaxDays,
		optionType, moneyness)
}
