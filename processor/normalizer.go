package processor

import (
	"math"
	"strings"
	"time"

	"optionflow/models"
)

// Contracts are quoted per 100 shares of the underlying.
const contractMultiplier = 100

// Volume above this fraction of open interest flags a contract as trading
// unusually heavily for its size.
const unusualVolumeRatio = 0.1

// TypeOf derives the option type from an OCC contract symbol. The type
// indicator sits nine characters from the end (one letter followed by the
// eight-digit strike). Symbols too short for the OCC layout fall back to a
// substring scan.
func TypeOf(contractSymbol string) models.OptionType {
	if len(contractSymbol) >= 9 {
		if contractSymbol[len(contractSymbol)-9] == 'P' {
			return models.OptionTypePut
		}
		return models.OptionTypeCall
	}
	if strings.Contains(contractSymbol, "P") {
		return models.OptionTypePut
	}
	return models.OptionTypeCall
}

// Normalize shapes a provider contract into the canonical form, deriving the
// option type, premium figures and flow classification. Contracts with no
// session volume or no last price carry nothing the views can rank on; for
// those it returns false.
func Normalize(ticker string, raw models.RawContract, spot float64, now time.Time) (models.Contract, bool) {
	if raw.Volume <= 0 || raw.LastPrice <= 0 {
		return models.Contract{}, false
	}
	return Shape(ticker, raw, spot, now), true
}

// Shape maps a provider contract onto the canonical form without the
// liquidity exclusion. Single-contract lookups use it directly so a quiet
// contract still resolves.
func Shape(ticker string, raw models.RawContract, spot float64, now time.Time) models.Contract {
	expiration := time.Unix(raw.Expiration, 0).UTC()

	contract := models.Contract{
		Ticker:         ticker,
		ContractSymbol: raw.ContractSymbol,
		Strike:         raw.Strike,
		Expiration:     expiration.Format("2006-01-02"),
		Type:           TypeOf(raw.ContractSymbol),

		LastPrice:         raw.LastPrice,
		Bid:               raw.Bid,
		Ask:               raw.Ask,
		Volume:            raw.Volume,
		OpenInterest:      raw.OpenInterest,
		ImpliedVolatility: raw.ImpliedVolatility,
		PercentChange:     raw.PercentChange,
		InTheMoney:        raw.InTheMoney,
		UnderlyingPrice:   spot,
	}

	contract.TotalPremium = raw.LastPrice * float64(raw.Volume) * contractMultiplier
	contract.DaysToExpiration = daysUntil(now, expiration)

	if raw.OpenInterest > 0 {
		contract.VolumeToOI = float64(raw.Volume) / float64(raw.OpenInterest)
		contract.UnusualVolume = contract.VolumeToOI > unusualVolumeRatio
	} else {
		// No resting open interest at all: any volume is new positioning.
		contract.UnusualVolume = true
	}

	if raw.Volume > raw.OpenInterest {
		contract.Action = models.ActionBought
	} else {
		contract.Action = models.ActionSold
	}

	return contract
}

// NormalizeAll runs Normalize over both sides of an expiration slice,
// returning the survivors in provider order, calls first.
func NormalizeAll(ticker string, chain *models.ExpirationChain, spot float64, now time.Time) []models.Contract {
	if chain == nil {
		return nil
	}
	out := make([]models.Contract, 0, len(chain.Calls)+len(chain.Puts))
	for _, raw := range chain.Calls {
		if c, ok := Normalize(ticker, raw, spot, now); ok {
			out = append(out, c)
		}
	}
	for _, raw := range chain.Puts {
		if c, ok := Normalize(ticker, raw, spot, now); ok {
			out = append(out, c)
		}
	}
	return out
}

func daysUntil(now, expiration time.Time) int {
	hours := expiration.Sub(now).Hours()
	if hours <= 0 {
		return 0
	}
	return int(math.Ceil(hours / 24))
}
