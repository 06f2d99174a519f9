package flow

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"optionflow/config"
	"optionflow/internal/fetch"
	"optionflow/logger"
	"optionflow/models"
	"optionflow/processor"
)

// SummaryStats aggregates option volume across the summary universe.
func (s *Service) SummaryStats(ctx context.Context) (*models.SummaryResponse, error) {
	const op = "summary_stats"
	const key = "summaryStats"

	c := s.begin(op, key)
	if !c.fetch {
		if resp, ok := c.cached.(*models.SummaryResponse); ok {
			return resp, nil
		}
	}

	started := time.Now()
	results := fetch.All(ctx, s.universes.Summary, s.plan(s.cfg.Fetch.Summary), func(ctx context.Context, symbol string) (models.SymbolVolume, error) {
		chain, err := s.source.OptionsChain(ctx, symbol)
		if err != nil {
			return models.SymbolVolume{Symbol: symbol}, err
		}
		return processor.TallyVolume(symbol, chain.Front()), nil
	})

	volumes := make([]models.SymbolVolume, 0, len(results))
	failures := 0
	for _, r := range results {
		if r.Failed() {
			failures++
		}
		v := r.Value
		if v.Symbol == "" {
			v.Symbol = r.Symbol
		}
		volumes = append(volumes, v)
	}
	if failures == len(results) {
		err := fmt.Errorf("summary stats: every symbol fetch failed")
		if stale, ok := s.fail(op, c, err); ok {
			return stale.(*models.SummaryResponse), nil
		}
		return nil, err
	}

	stats := processor.Summarize(volumes)
	resp := &models.SummaryResponse{
		TotalVolume:  stats.TotalVolume,
		TotalCalls:   stats.TotalCalls,
		TotalPuts:    stats.TotalPuts,
		PutCallRatio: stats.PutCallRatio,
		MostActive:   stats.MostActive,
		MarketStatus: c.marketOpen,
		LastUpdate:   c.now,
	}
	s.finish(op, key, c, resp, started)
	return resp, nil
}

// OptionsChain returns a symbol's front-expiration chain with the underlying
// quote and the full expiration list.
func (s *Service) OptionsChain(ctx context.Context, symbol string) (*models.ChainResponse, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	op := "options_chain:" + symbol
	key := "optionsChain_" + symbol

	c := s.begin(op, key)
	if !c.fetch {
		if resp, ok := c.cached.(*models.ChainResponse); ok {
			return resp, nil
		}
	}

	started := time.Now()
	chain, err := s.source.OptionsChain(ctx, symbol)
	if err != nil {
		if stale, ok := s.fail(op, c, err); ok {
			return stale.(*models.ChainResponse), nil
		}
		return nil, err
	}

	resp := &models.ChainResponse{
		Symbol:       symbol,
		Underlying:   chain.Quote,
		Expirations:  chain.ExpirationDates,
		MarketStatus: c.marketOpen,
		LastUpdate:   c.now,
	}
	if front := chain.Front(); front != nil {
		resp.Calls = front.Calls
		resp.Puts = front.Puts
	}
	s.finish(op, key, c, resp, started)
	return resp, nil
}

// TopMovers scans the wide universe for the contracts with the largest
// premium flow. Ranking runs in two stages: each fetch batch keeps its own
// top contracts, then the survivors compete for the final list.
func (s *Service) TopMovers(ctx context.Context) (*models.MoversResponse, error) {
	const op = "top_movers"
	const key = "topMovers"

	c := s.begin(op, key)
	if !c.fetch {
		if resp, ok := c.cached.(*models.MoversResponse); ok {
			return resp, nil
		}
	}

	viewCfg := s.cfg.Views.TopMovers
	criteria := models.ScreenCriteria{
		MinVolume:       viewCfg.MinVolume,
		MinOpenInterest: viewCfg.MinOpenInterest,
	}

	started := time.Now()
	results := fetch.All(ctx, s.universes.Universe, s.plan(s.cfg.Fetch.Movers), func(ctx context.Context, symbol string) ([]models.Contract, error) {
		chain, err := s.source.OptionsChain(ctx, symbol)
		if err != nil {
			return nil, err
		}
		contracts := processor.NormalizeAll(symbol, chain.Front(), chain.Quote.RegularMarketPrice, c.now)
		return processor.Screen(contracts, criteria), nil
	})

	if allFailed(results) {
		err := fmt.Errorf("top movers: every symbol fetch failed")
		if stale, ok := s.fail(op, c, err); ok {
			return stale.(*models.MoversResponse), nil
		}
		return nil, err
	}

	var pool []models.Contract
	for _, batch := range fetch.Batches(results, s.cfg.Fetch.Movers.BatchSize) {
		var candidates []models.Contract
		for _, r := range batch {
			candidates = append(candidates, r.Value...)
		}
		pool = append(pool, processor.TopN(candidates, viewCfg.BatchTop)...)
	}

	resp := &models.MoversResponse{
		MarketStatus: c.marketOpen,
		LastUpdate:   c.now,
		Data:         processor.TopN(pool, viewCfg.ResultSize),
	}
	s.finish(op, key, c, resp, started)
	return resp, nil
}

// LongDated ranks contracts across the liquid names whose expirations fall
// inside the forward window, a lower volume floor than the movers view since
// far-dated strikes trade thinner.
func (s *Service) LongDated(ctx context.Context) (*models.MoversResponse, error) {
	const op = "long_dated"
	const key = "longDated"

	c := s.begin(op, key)
	if !c.fetch {
		if resp, ok := c.cached.(*models.MoversResponse); ok {
			return resp, nil
		}
	}

	viewCfg := s.cfg.Views.LongDated
	from := c.now
	to := c.now.AddDate(0, viewCfg.WindowMonths, 0)
	criteria := models.ScreenCriteria{MinVolume: viewCfg.MinVolume}

	started := time.Now()
	results := fetch.All(ctx, s.universes.LongDated, s.plan(s.cfg.Fetch.Chains), func(ctx context.Context, symbol string) ([]models.Contract, error) {
		contracts, err := s.contractsInWindow(ctx, symbol, from, to, c.now)
		if err != nil {
			return nil, err
		}
		return processor.Screen(contracts, criteria), nil
	})

	if allFailed(results) {
		err := fmt.Errorf("long dated: every symbol fetch failed")
		if stale, ok := s.fail(op, c, err); ok {
			return stale.(*models.MoversResponse), nil
		}
		return nil, err
	}

	var pool []models.Contract
	for _, r := range results {
		pool = append(pool, r.Value...)
	}

	resp := &models.MoversResponse{
		MarketStatus: c.marketOpen,
		LastUpdate:   c.now,
		Data:         processor.TopN(pool, viewCfg.ResultSize),
	}
	s.finish(op, key, c, resp, started)
	return resp, nil
}

// LongDatedLarge finds large notional positions in the six-to-twelve month
// window, ranked by the capital committed rather than the premium paid.
func (s *Service) LongDatedLarge(ctx context.Context) (*models.LargeTradesResponse, error) {
	const op = "long_dated_large"
	const key = "longDatedLarge"

	c := s.begin(op, key)
	if !c.fetch {
		if resp, ok := c.cached.(*models.LargeTradesResponse); ok {
			return resp, nil
		}
	}

	viewCfg := s.cfg.Views.LongDatedLarge
	from := c.now.AddDate(0, viewCfg.WindowStartMonths, 0)
	to := c.now.AddDate(0, viewCfg.WindowEndMonths, 0)
	criteria := models.ScreenCriteria{MinVolume: viewCfg.MinVolume}

	started := time.Now()
	results := fetch.All(ctx, s.universes.LongDated, s.plan(s.cfg.Fetch.Chains), func(ctx context.Context, symbol string) ([]models.Contract, error) {
		contracts, err := s.contractsInWindow(ctx, symbol, from, to, c.now)
		if err != nil {
			return nil, err
		}
		return processor.Screen(contracts, criteria), nil
	})

	if allFailed(results) {
		err := fmt.Errorf("long dated large: every symbol fetch failed")
		if stale, ok := s.fail(op, c, err); ok {
			return stale.(*models.LargeTradesResponse), nil
		}
		return nil, err
	}

	var candidates []models.Contract
	for _, r := range results {
		for _, contract := range r.Value {
			if contract.TotalPremium < viewCfg.MinTotalValue {
				continue
			}
			candidates = append(candidates, contract)
		}
	}

	var total float64
	ranked := processor.TopN(candidates, viewCfg.ResultSize)
	trades := make([]models.LargeTrade, 0, len(ranked))
	for _, contract := range ranked {
		trades = append(trades, models.LargeTrade{
			Contract:          contract,
			Notional:          contract.Strike * float64(contract.Volume) * 100,
			DistanceFromPrice: distancePercent(contract.Strike, contract.UnderlyingPrice),
		})
		total += contract.TotalPremium
	}

	resp := &models.LargeTradesResponse{
		Count:        len(trades),
		TotalValue:   total,
		MarketStatus: c.marketOpen,
		LastUpdate:   c.now,
		Data:         trades,
	}
	s.finish(op, key, c, resp, started)
	return resp, nil
}

// Screen runs an ad-hoc filter over the chains of the requested symbols.
// Equivalent criteria share a cache entry through the canonical key.
func (s *Service) Screen(ctx context.Context, criteria models.ScreenCriteria) (*models.ScreenResponse, error) {
	op := "screen:" + criteria.CacheKey()
	key := "screen_" + criteria.CacheKey()

	c := s.begin(op, key)
	if !c.fetch {
		if resp, ok := c.cached.(*models.ScreenResponse); ok {
			return resp, nil
		}
	}

	symbols := make([]string, len(criteria.Symbols))
	for i, sym := range criteria.Symbols {
		symbols[i] = strings.ToUpper(strings.TrimSpace(sym))
	}

	started := time.Now()
	results := fetch.All(ctx, symbols, s.plan(s.cfg.Fetch.Chains), func(ctx context.Context, symbol string) ([]models.Contract, error) {
		var contracts []models.Contract
		if criteria.MaxDays > 0 {
			from := c.now.AddDate(0, 0, criteria.MinDays)
			to := c.now.AddDate(0, 0, criteria.MaxDays)
			window, err := s.contractsInWindow(ctx, symbol, from, to, c.now)
			if err != nil {
				return nil, err
			}
			contracts = window
		} else {
			chain, err := s.source.OptionsChain(ctx, symbol)
			if err != nil {
				return nil, err
			}
			contracts = processor.NormalizeAll(symbol, chain.Front(), chain.Quote.RegularMarketPrice, c.now)
		}
		return processor.Screen(contracts, criteria), nil
	})

	if allFailed(results) {
		err := fmt.Errorf("screen: every symbol fetch failed")
		if stale, ok := s.fail(op, c, err); ok {
			return stale.(*models.ScreenResponse), nil
		}
		return nil, err
	}

	var matched []models.Contract
	for _, r := range results {
		matched = append(matched, r.Value...)
	}

	resp := &models.ScreenResponse{
		Count:        len(matched),
		Results:      matched,
		Timestamp:    c.now,
		MarketStatus: c.marketOpen,
	}
	s.finish(op, key, c, resp, started)
	return resp, nil
}

// OptionDetails resolves a single contract by its OCC symbol. The expiration
// embedded in the symbol steers the lookup to the right chain slice.
func (s *Service) OptionDetails(ctx context.Context, symbol, optionSymbol string) (*models.DetailsResponse, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	optionSymbol = strings.ToUpper(strings.TrimSpace(optionSymbol))
	op := "option_details:" + optionSymbol
	key := "optionDetails_" + optionSymbol

	c := s.begin(op, key)
	if !c.fetch {
		if resp, ok := c.cached.(*models.DetailsResponse); ok {
			return resp, nil
		}
	}

	started := time.Now()
	chain, err := s.source.OptionsChain(ctx, symbol)
	if err != nil {
		if stale, ok := s.fail(op, c, err); ok {
			return stale.(*models.DetailsResponse), nil
		}
		return nil, err
	}

	slice := chain.Front()
	if epoch, ok := expirationFromSymbol(optionSymbol, chain.ExpirationDates); ok {
		if slice == nil || slice.ExpirationDate != epoch {
			sub, err := s.source.OptionsChainAt(ctx, symbol, epoch)
			if err != nil {
				if stale, ok := s.fail(op, c, err); ok {
					return stale.(*models.DetailsResponse), nil
				}
				return nil, err
			}
			slice = sub.Front()
		}
	}

	raw, found := findContract(slice, optionSymbol)
	if !found {
		return nil, fmt.Errorf("contract %s not found on %s chain", optionSymbol, symbol)
	}

	// The chain's embedded quote can lag on sliced fetches; prefer a live
	// one and fall back to it.
	underlying := chain.Quote
	if quote, err := s.source.Quote(ctx, symbol); err == nil {
		underlying = *quote
	} else {
		s.log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("quote refresh failed, using chain quote")
	}

	resp := &models.DetailsResponse{
		Symbol:       symbol,
		Contract:     processor.Shape(symbol, raw, underlying.RegularMarketPrice, c.now),
		Underlying:   underlying,
		MarketStatus: c.marketOpen,
		LastUpdate:   c.now,
	}
	s.finish(op, key, c, resp, started)
	return resp, nil
}

// Expirations lists every expiration date quoted for a symbol.
func (s *Service) Expirations(ctx context.Context, symbol string) (*models.ExpirationsResponse, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	op := "expirations:" + symbol
	key := "expirations_" + symbol

	c := s.begin(op, key)
	if !c.fetch {
		if resp, ok := c.cached.(*models.ExpirationsResponse); ok {
			return resp, nil
		}
	}

	started := time.Now()
	chain, err := s.source.OptionsChain(ctx, symbol)
	if err != nil {
		if stale, ok := s.fail(op, c, err); ok {
			return stale.(*models.ExpirationsResponse), nil
		}
		return nil, err
	}

	dates := make([]models.ExpirationDate, len(chain.ExpirationDates))
	for i, epoch := range chain.ExpirationDates {
		dates[i] = models.ExpirationDate{
			Epoch: epoch,
			Date:  time.Unix(epoch, 0).UTC().Format("2006-01-02"),
		}
	}

	resp := &models.ExpirationsResponse{
		Symbol:       symbol,
		Expirations:  dates,
		MarketStatus: c.marketOpen,
		LastUpdate:   c.now,
	}
	s.finish(op, key, c, resp, started)
	return resp, nil
}

// contractsInWindow fetches and normalizes every chain slice of symbol whose
// expiration falls inside [from, to]. The base chain fetch supplies the spot
// price and the expiration list; further slices fetch individually, with a
// failed slice logged and skipped rather than sinking the symbol.
func (s *Service) contractsInWindow(ctx context.Context, symbol string, from, to, now time.Time) ([]models.Contract, error) {
	chain, err := s.source.OptionsChain(ctx, symbol)
	if err != nil {
		return nil, err
	}
	spot := chain.Quote.RegularMarketPrice
	front := chain.Front()

	var out []models.Contract
	for _, epoch := range chain.ExpirationDates {
		exp := time.Unix(epoch, 0).UTC()
		if exp.Before(from) || exp.After(to) {
			continue
		}

		slice := front
		if slice == nil || slice.ExpirationDate != epoch {
			sub, err := s.source.OptionsChainAt(ctx, symbol, epoch)
			if err != nil {
				s.log.WithError(err).WithFields(logger.Fields{
					"symbol":     symbol,
					"expiration": epoch,
				}).Warn("expiration slice fetch failed, skipping")
				continue
			}
			slice = sub.Front()
		}
		out = append(out, processor.NormalizeAll(symbol, slice, spot, now)...)
	}
	return out, nil
}

func (s *Service) plan(cfg config.BatchPlanConfig) fetch.Plan {
	return fetch.Plan{
		BatchSize:       cfg.BatchSize,
		InterBatchDelay: cfg.InterBatchDelay(),
	}
}

func allFailed[T any](results []fetch.Result[T]) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Failed() {
			return false
		}
	}
	return true
}

// expirationFromSymbol extracts the YYMMDD expiration embedded in an OCC
// contract symbol and matches it against the chain's expiration list.
func expirationFromSymbol(optionSymbol string, expirations []int64) (int64, bool) {
	if len(optionSymbol) < 15 {
		return 0, false
	}
	dateStr := optionSymbol[len(optionSymbol)-15 : len(optionSymbol)-9]
	date, err := time.Parse("060102", dateStr)
	if err != nil {
		return 0, false
	}
	want := date.Format("2006-01-02")
	for _, epoch := range expirations {
		if time.Unix(epoch, 0).UTC().Format("2006-01-02") == want {
			return epoch, true
		}
	}
	return 0, false
}

func findContract(slice *models.ExpirationChain, optionSymbol string) (models.RawContract, bool) {
	if slice == nil {
		return models.RawContract{}, false
	}
	for _, c := range slice.Calls {
		if c.ContractSymbol == optionSymbol {
			return c, true
		}
	}
	for _, p := range slice.Puts {
		if p.ContractSymbol == optionSymbol {
			return p, true
		}
	}
	return models.RawContract{}, false
}

func distancePercent(strike, spot float64) string {
	if spot == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", math.Abs(strike-spot)/spot*100)
}
