package processor

import (
	"math"

	"optionflow/models"
)

// TallyVolume sums the session volume of every contract quoted on the front
// expiration of a symbol's chain, split by side. A nil chain yields a zero
// tally under the symbol's name, which is how failed fetches enter the
// summary without skewing it.
func TallyVolume(symbol string, chain *models.ExpirationChain) models.SymbolVolume {
	tally := models.SymbolVolume{Symbol: symbol}
	if chain == nil {
		return tally
	}
	for _, c := range chain.Calls {
		if c.Volume > 0 {
			tally.Calls += c.Volume
		}
	}
	for _, p := range chain.Puts {
		if p.Volume > 0 {
			tally.Puts += p.Volume
		}
	}
	tally.Volume = tally.Calls + tally.Puts
	return tally
}

// Summarize folds per-symbol volume tallies into the cross-symbol aggregate.
// Most-active tracking uses a strict comparison, so between tied symbols the
// earlier one in the input wins. With zero call volume the put/call ratio is
// not representable and marshals as null.
func Summarize(volumes []models.SymbolVolume) models.SummaryStats {
	var stats models.SummaryStats
	for _, v := range volumes {
		stats.TotalVolume += v.Volume
		stats.TotalCalls += v.Calls
		stats.TotalPuts += v.Puts
		if v.Volume > stats.MostActive.Volume {
			stats.MostActive = models.MostActive{Symbol: v.Symbol, Volume: v.Volume}
		}
	}

	if stats.TotalCalls > 0 {
		stats.PutCallRatio = models.Ratio(float64(stats.TotalPuts) / float64(stats.TotalCalls))
	} else {
		stats.PutCallRatio = models.Ratio(math.Inf(1))
	}
	return stats
}
