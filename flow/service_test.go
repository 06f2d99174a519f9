package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"optionflow/config"
	"optionflow/internal/cache"
	"optionflow/internal/market"
	"optionflow/internal/throttle"
	"optionflow/models"
)

// Tuesday noon UTC, inside the session when the clock runs in UTC.
var openTime = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

// Tuesday evening, after the close.
var closedTime = time.Date(2025, 3, 4, 20, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu         sync.Mutex
	chains     map[string]*models.OptionChain
	slices     map[string]*models.OptionChain // keyed symbol@epoch
	quotes     map[string]*models.Quote
	failing    map[string]bool
	chainCalls int
	quoteCalls int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		chains:  map[string]*models.OptionChain{},
		slices:  map[string]*models.OptionChain{},
		quotes:  map[string]*models.Quote{},
		failing: map[string]bool{},
	}
}

func (f *fakeSource) OptionsChain(_ context.Context, symbol string) (*models.OptionChain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainCalls++
	if f.failing[symbol] {
		return nil, errors.New("upstream down")
	}
	chain, ok := f.chains[symbol]
	if !ok {
		return nil, fmt.Errorf("no chain for %s", symbol)
	}
	return chain, nil
}

func (f *fakeSource) OptionsChainAt(_ context.Context, symbol string, expiration int64) (*models.OptionChain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainCalls++
	chain, ok := f.slices[fmt.Sprintf("%s@%d", symbol, expiration)]
	if !ok {
		return nil, fmt.Errorf("no slice for %s@%d", symbol, expiration)
	}
	return chain, nil
}

func (f *fakeSource) Quote(_ context.Context, symbol string) (*models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoteCalls++
	quote, ok := f.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return quote, nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainCalls
}

func testConfig() *config.Config {
	return &config.Config{
		Fetch: config.FetchConfig{
			Summary: config.BatchPlanConfig{BatchSize: 2},
			Movers:  config.BatchPlanConfig{BatchSize: 1},
			Chains:  config.BatchPlanConfig{BatchSize: 1},
		},
		Views: config.ViewsConfig{
			TopMovers:      config.TopMoversViewConfig{MinVolume: 50, MinOpenInterest: 1, BatchTop: 1, ResultSize: 2},
			LongDated:      config.LongDatedViewConfig{MinVolume: 5, WindowMonths: 6, ResultSize: 20},
			LongDatedLarge: config.LargeViewConfig{MinVolume: 5, MinTotalValue: 10000, WindowStartMonths: 6, WindowEndMonths: 12, ResultSize: 20},
			Screener:       config.ScreenerViewConfig{DefaultMinVolume: 50, DefaultMaxDays: 30},
		},
	}
}

func testUniverses() *config.SymbolUniverses {
	return &config.SymbolUniverses{
		Summary:         []string{"SPY", "QQQ"},
		Universe:        []string{"SPY", "QQQ", "AAPL"},
		LongDated:       []string{"SPY"},
		ScreenerDefault: []string{"SPY", "QQQ"},
	}
}

func newTestService(t *testing.T, source Source, now time.Time, cooldown time.Duration) *Service {
	t.Helper()
	clock, err := market.NewClockAt("UTC", func() time.Time { return now })
	if err != nil {
		t.Fatal(err)
	}
	return NewService(
		testConfig(),
		testUniverses(),
		source,
		cache.New(10*time.Minute, 24*time.Hour),
		throttle.NewGate(nil, cooldown),
		clock,
	)
}

func chainWith(symbol string, spot float64, expiration time.Time, calls, puts []models.RawContract) *models.OptionChain {
	return &models.OptionChain{
		UnderlyingSymbol: symbol,
		ExpirationDates:  []int64{expiration.Unix()},
		Quote:            models.Quote{Symbol: symbol, RegularMarketPrice: spot},
		Options: []models.ExpirationChain{{
			ExpirationDate: expiration.Unix(),
			Calls:          calls,
			Puts:           puts,
		}},
	}
}

func activeCall(symbol string, volume int64, lastPrice float64, expiration time.Time) models.RawContract {
	return models.RawContract{
		ContractSymbol: symbol,
		Strike:         550,
		LastPrice:      lastPrice,
		Volume:         volume,
		OpenInterest:   100,
		Expiration:     expiration.Unix(),
	}
}

func TestSummaryStats(t *testing.T) {
	source := newFakeSource()
	exp := openTime.Add(10 * 24 * time.Hour)
	source.chains["SPY"] = chainWith("SPY", 552, exp,
		[]models.RawContract{{ContractSymbol: "SPY250314C00550000", Volume: 600, LastPrice: 1, Expiration: exp.Unix()}},
		[]models.RawContract{{ContractSymbol: "SPY250314P00550000", Volume: 400, LastPrice: 1, Expiration: exp.Unix()}})
	source.chains["QQQ"] = chainWith("QQQ", 480, exp,
		[]models.RawContract{{ContractSymbol: "QQQ250314C00480000", Volume: 1000, LastPrice: 1, Expiration: exp.Unix()}},
		[]models.RawContract{{ContractSymbol: "QQQ250314P00480000", Volume: 2000, LastPrice: 1, Expiration: exp.Unix()}})

	svc := newTestService(t, source, openTime, 15*time.Minute)

	resp, err := svc.SummaryStats(context.Background())
	if err != nil {
		t.Fatalf("SummaryStats: %v", err)
	}
	if resp.TotalVolume != 4000 || resp.TotalCalls != 1600 || resp.TotalPuts != 2400 {
		t.Errorf("totals wrong: %+v", resp)
	}
	if resp.MostActive.Symbol != "QQQ" {
		t.Errorf("mostActive = %q, want QQQ", resp.MostActive.Symbol)
	}
	if float64(resp.PutCallRatio) != 1.5 {
		t.Errorf("putCallRatio = %v, want 1.5", resp.PutCallRatio)
	}
	if !resp.MarketStatus {
		t.Error("market should be open at the test time")
	}

	// Second call inside the cooldown serves the cache.
	before := source.calls()
	if _, err := svc.SummaryStats(context.Background()); err != nil {
		t.Fatalf("cached SummaryStats: %v", err)
	}
	if source.calls() != before {
		t.Error("cached call should not hit the source")
	}
}

func TestSummaryStatsPartialFailureContributesZero(t *testing.T) {
	source := newFakeSource()
	exp := openTime.Add(10 * 24 * time.Hour)
	source.chains["SPY"] = chainWith("SPY", 552, exp,
		[]models.RawContract{{ContractSymbol: "SPY250314C00550000", Volume: 500, LastPrice: 1, Expiration: exp.Unix()}}, nil)
	source.failing["QQQ"] = true

	svc := newTestService(t, source, openTime, 15*time.Minute)
	resp, err := svc.SummaryStats(context.Background())
	if err != nil {
		t.Fatalf("SummaryStats: %v", err)
	}
	if resp.TotalVolume != 500 {
		t.Errorf("failed symbol should contribute zero volume, total = %d", resp.TotalVolume)
	}
}

func TestSummaryStatsAllFailedNoCache(t *testing.T) {
	source := newFakeSource()
	source.failing["SPY"] = true
	source.failing["QQQ"] = true

	svc := newTestService(t, source, openTime, 15*time.Minute)
	if _, err := svc.SummaryStats(context.Background()); err == nil {
		t.Fatal("all symbols failing with no cache should error")
	}
}

func TestOptionsChainStaleServedOnFailure(t *testing.T) {
	source := newFakeSource()
	exp := openTime.Add(10 * 24 * time.Hour)
	source.chains["SPY"] = chainWith("SPY", 552, exp,
		[]models.RawContract{activeCall("SPY250314C00550000", 100, 2, exp)}, nil)

	// Zero cooldown: every request is allowed to fetch.
	svc := newTestService(t, source, openTime, 0)

	first, err := svc.OptionsChain(context.Background(), "spy")
	if err != nil {
		t.Fatalf("OptionsChain: %v", err)
	}
	if first.Symbol != "SPY" {
		t.Errorf("symbol should be upper-cased, got %q", first.Symbol)
	}

	source.mu.Lock()
	source.failing["SPY"] = true
	source.mu.Unlock()

	second, err := svc.OptionsChain(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("failed refresh with stale cache should serve stale, got %v", err)
	}
	if len(second.Calls) != 1 {
		t.Errorf("stale payload lost its contracts: %+v", second)
	}
}

func TestFailedCycleRetriesNextRequest(t *testing.T) {
	source := newFakeSource()
	source.failing["SPY"] = true

	svc := newTestService(t, source, openTime, 15*time.Minute)
	if _, err := svc.OptionsChain(context.Background(), "SPY"); err == nil {
		t.Fatal("expected error with no cache")
	}

	exp := openTime.Add(10 * 24 * time.Hour)
	source.mu.Lock()
	source.failing["SPY"] = false
	source.chains["SPY"] = chainWith("SPY", 552, exp,
		[]models.RawContract{activeCall("SPY250314C00550000", 100, 2, exp)}, nil)
	source.mu.Unlock()

	// The failed cycle must not have consumed the cooldown.
	if _, err := svc.OptionsChain(context.Background(), "SPY"); err != nil {
		t.Fatalf("retry after failed cycle: %v", err)
	}
}

func TestClosedMarketServesCacheWithZeroCooldown(t *testing.T) {
	source := newFakeSource()
	exp := closedTime.Add(10 * 24 * time.Hour)
	source.chains["SPY"] = chainWith("SPY", 552, exp,
		[]models.RawContract{activeCall("SPY250314C00550000", 100, 2, exp)}, nil)

	svc := newTestService(t, source, closedTime, 0)

	first, err := svc.OptionsChain(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("OptionsChain: %v", err)
	}
	if first.MarketStatus {
		t.Error("market should be closed at the test time")
	}

	before := source.calls()
	if _, err := svc.OptionsChain(context.Background(), "SPY"); err != nil {
		t.Fatal(err)
	}
	if source.calls() != before {
		t.Error("closed market with a cached payload must not refetch")
	}
}

func TestTopMoversPerBatchThenGlobalRanking(t *testing.T) {
	source := newFakeSource()
	exp := openTime.Add(10 * 24 * time.Hour)

	// Batch size 1, batch top 1, result size 2. Premiums: SPY 500k, QQQ 2M,
	// AAPL 100k. The final list keeps the two largest across batches.
	source.chains["SPY"] = chainWith("SPY", 552, exp,
		[]models.RawContract{activeCall("SPY250314C00550000", 1000, 5, exp)}, nil) // 500k
	source.chains["QQQ"] = chainWith("QQQ", 480, exp,
		[]models.RawContract{activeCall("QQQ250314C00480000", 2000, 10, exp)}, nil) // 2M
	source.chains["AAPL"] = chainWith("AAPL", 230, exp,
		[]models.RawContract{activeCall("AAPL250314C00230000", 500, 2, exp)}, nil) // 100k

	svc := newTestService(t, source, openTime, 5*time.Minute)
	resp, err := svc.TopMovers(context.Background())
	if err != nil {
		t.Fatalf("TopMovers: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("got %d movers, want 2", len(resp.Data))
	}
	if resp.Data[0].ContractSymbol != "QQQ250314C00480000" || resp.Data[1].ContractSymbol != "SPY250314C00550000" {
		t.Errorf("ranking wrong: %s, %s", resp.Data[0].ContractSymbol, resp.Data[1].ContractSymbol)
	}
}

func TestTopMoversAppliesVolumeFloor(t *testing.T) {
	source := newFakeSource()
	exp := openTime.Add(10 * 24 * time.Hour)
	source.chains["SPY"] = chainWith("SPY", 552, exp,
		[]models.RawContract{activeCall("SPY250314C00550000", 10, 5, exp)}, nil)
	source.chains["QQQ"] = chainWith("QQQ", 480, exp, nil, nil)
	source.chains["AAPL"] = chainWith("AAPL", 230, exp, nil, nil)

	svc := newTestService(t, source, openTime, 5*time.Minute)
	resp, err := svc.TopMovers(context.Background())
	if err != nil {
		t.Fatalf("TopMovers: %v", err)
	}
	if len(resp.Data) != 0 {
		t.Errorf("volume 10 is under the floor of 50, got %d movers", len(resp.Data))
	}
}

func TestLongDatedLarge(t *testing.T) {
	source := newFakeSource()
	farExp := openTime.AddDate(0, 8, 0)
	nearExp := openTime.Add(10 * 24 * time.Hour)

	base := chainWith("SPY", 552, nearExp,
		[]models.RawContract{activeCall("SPY250314C00550000", 5000, 5, nearExp)}, nil)
	base.ExpirationDates = []int64{nearExp.Unix(), farExp.Unix()}
	source.chains["SPY"] = base

	farCall := activeCall("SPY251104C00600000", 20, 15, farExp)
	farCall.Strike = 600
	source.slices[fmt.Sprintf("SPY@%d", farExp.Unix())] = chainWith("SPY", 552, farExp,
		[]models.RawContract{farCall}, nil)

	svc := newTestService(t, source, openTime, 10*time.Minute)
	resp, err := svc.LongDatedLarge(context.Background())
	if err != nil {
		t.Fatalf("LongDatedLarge: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("got %d trades, want 1 (near expiration is outside the window)", resp.Count)
	}

	trade := resp.Data[0]
	if wantNotional := 600.0 * 20 * 100; trade.Notional != wantNotional {
		t.Errorf("notional = %v, want %v", trade.Notional, wantNotional)
	}
	// Total value sums the premium paid (lastPrice * volume * 100), not the
	// strike notional.
	if wantValue := 15.0 * 20 * 100; resp.TotalValue != wantValue {
		t.Errorf("totalValue = %v, want %v", resp.TotalValue, wantValue)
	}
	if trade.DistanceFromPrice != "8.70%" {
		t.Errorf("distanceFromPrice = %q, want 8.70%%", trade.DistanceFromPrice)
	}
}

func TestLongDatedWindowExcludesFarExpirations(t *testing.T) {
	source := newFakeSource()
	nearExp := openTime.AddDate(0, 3, 0)
	farExp := openTime.AddDate(0, 8, 0)

	base := chainWith("SPY", 552, nearExp,
		[]models.RawContract{activeCall("SPY250604C00550000", 100, 5, nearExp)}, nil)
	base.ExpirationDates = []int64{nearExp.Unix(), farExp.Unix()}
	source.chains["SPY"] = base
	source.slices[fmt.Sprintf("SPY@%d", farExp.Unix())] = chainWith("SPY", 552, farExp,
		[]models.RawContract{activeCall("SPY251104C00550000", 100, 5, farExp)}, nil)

	svc := newTestService(t, source, openTime, 10*time.Minute)
	resp, err := svc.LongDated(context.Background())
	if err != nil {
		t.Fatalf("LongDated: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("got %d contracts, want only the one inside the six month window", len(resp.Data))
	}
	if resp.Data[0].ContractSymbol != "SPY250604C00550000" {
		t.Errorf("wrong contract survived the window: %q", resp.Data[0].ContractSymbol)
	}
}

func TestScreenCanonicalCacheKeySharing(t *testing.T) {
	source := newFakeSource()
	exp := openTime.Add(10 * 24 * time.Hour)
	source.chains["SPY"] = chainWith("SPY", 552, exp,
		[]models.RawContract{activeCall("SPY250314C00550000", 100, 2, exp)}, nil)
	source.chains["QQQ"] = chainWith("QQQ", 480, exp, nil, nil)

	svc := newTestService(t, source, openTime, 5*time.Minute)

	first, err := svc.Screen(context.Background(), models.ScreenCriteria{Symbols: []string{"spy", "qqq"}, MinVolume: 50})
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if first.Count != 1 {
		t.Errorf("count = %d, want 1", first.Count)
	}

	// Same criteria with reordered, differently-cased symbols shares the entry.
	before := source.calls()
	if _, err := svc.Screen(context.Background(), models.ScreenCriteria{Symbols: []string{"QQQ", "SPY"}, MinVolume: 50}); err != nil {
		t.Fatal(err)
	}
	if source.calls() != before {
		t.Error("equivalent criteria should share a cache entry")
	}
}

func TestOptionDetails(t *testing.T) {
	source := newFakeSource()
	exp := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	source.chains["SPY"] = chainWith("SPY", 552, exp,
		[]models.RawContract{activeCall("SPY250314C00550000", 100, 2, exp)}, nil)
	source.quotes["SPY"] = &models.Quote{Symbol: "SPY", RegularMarketPrice: 553.5}

	svc := newTestService(t, source, openTime, 5*time.Minute)
	resp, err := svc.OptionDetails(context.Background(), "SPY", "SPY250314C00550000")
	if err != nil {
		t.Fatalf("OptionDetails: %v", err)
	}
	if resp.Contract.ContractSymbol != "SPY250314C00550000" {
		t.Errorf("wrong contract resolved: %q", resp.Contract.ContractSymbol)
	}
	if resp.Underlying.RegularMarketPrice != 553.5 {
		t.Errorf("underlying should come from the live quote, got %v", resp.Underlying.RegularMarketPrice)
	}
	if resp.Contract.Type != models.OptionTypeCall {
		t.Errorf("type = %v", resp.Contract.Type)
	}

	if _, err := svc.OptionDetails(context.Background(), "SPY", "SPY250314P00550000"); err == nil {
		t.Error("unknown contract should error")
	}
}

func TestExpirations(t *testing.T) {
	source := newFakeSource()
	exp := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	source.chains["SPY"] = chainWith("SPY", 552, exp, nil, nil)

	svc := newTestService(t, source, openTime, 5*time.Minute)
	resp, err := svc.Expirations(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("Expirations: %v", err)
	}
	if len(resp.Expirations) != 1 {
		t.Fatalf("got %d expirations, want 1", len(resp.Expirations))
	}
	if resp.Expirations[0].Date != "2025-03-14" {
		t.Errorf("date = %q, want 2025-03-14", resp.Expirations[0].Date)
	}
}
