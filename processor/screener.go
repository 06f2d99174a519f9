package processor

import "optionflow/models"

// Matches reports whether a contract satisfies every constraint in the
// criteria. A zero-valued criteria admits everything, so applying it is the
// identity over any contract list.
func Matches(c models.Contract, criteria models.ScreenCriteria) bool {
	if c.Volume < criteria.MinVolume {
		return false
	}
	if c.OpenInterest < criteria.MinOpenInterest {
		return false
	}
	if c.ImpliedVolatility < criteria.MinIV {
		return false
	}
	if criteria.MaxIV > 0 && c.ImpliedVolatility > criteria.MaxIV {
		return false
	}
	if c.LastPrice < criteria.MinPrice {
		return false
	}
	if criteria.MaxPrice > 0 && c.LastPrice > criteria.MaxPrice {
		return false
	}
	if c.DaysToExpiration < criteria.MinDays {
		return false
	}
	if criteria.MaxDays > 0 && c.DaysToExpiration > criteria.MaxDays {
		return false
	}

	switch criteria.OptionType {
	case models.FilterCalls:
		if c.Type != models.OptionTypeCall {
			return false
		}
	case models.FilterPuts:
		if c.Type != models.OptionTypePut {
			return false
		}
	}

	switch criteria.Moneyness {
	case models.FilterITM:
		if !inTheMoney(c) {
			return false
		}
	case models.FilterOTM:
		if inTheMoney(c) {
			return false
		}
	}

	return true
}

// Screen filters contracts down to those matching the criteria, preserving
// input order. Screening is idempotent: re-screening its own output with the
// same criteria changes nothing.
func Screen(contracts []models.Contract, criteria models.ScreenCriteria) []models.Contract {
	out := make([]models.Contract, 0, len(contracts))
	for _, c := range contracts {
		if Matches(c, criteria) {
			out = append(out, c)
		}
	}
	return out
}

// inTheMoney recomputes moneyness from the spot price instead of trusting
// the provider flag, which lags the quote on fast markets.
func inTheMoney(c models.Contract) bool {
	if c.Type == models.OptionTypeCall {
		return c.UnderlyingPrice > c.Strike
	}
	return c.UnderlyingPrice < c.Strike
}
