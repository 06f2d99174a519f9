package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAllPreservesOrderAndSlots(t *testing.T) {
	symbols := []string{"SPY", "QQQ", "AAPL", "TSLA", "MSFT"}
	boom := errors.New("upstream 500")

	results := All(context.Background(), symbols, Plan{BatchSize: 2}, func(_ context.Context, symbol string) (int, error) {
		if symbol == "AAPL" {
			return 0, boom
		}
		return len(symbol), nil
	})

	if len(results) != len(symbols) {
		t.Fatalf("got %d results, want %d", len(results), len(symbols))
	}
	for i, r := range results {
		if r.Symbol != symbols[i] {
			t.Errorf("slot %d holds %q, want %q", i, r.Symbol, symbols[i])
		}
	}
	if !results[2].Failed() || results[2].Value != 0 {
		t.Errorf("failed symbol should carry zero value and its error, got %+v", results[2])
	}
	if results[0].Value != 3 || results[4].Value != 4 {
		t.Errorf("healthy symbols lost their values: %+v", results)
	}
}

func TestAllBatchConcurrencyBound(t *testing.T) {
	var mu sync.Mutex
	var active, peak int

	symbols := []string{"A", "B", "C", "D", "E", "F", "G"}
	All(context.Background(), symbols, Plan{BatchSize: 3}, func(_ context.Context, _ string) (struct{}, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return struct{}{}, nil
	})

	if peak > 3 {
		t.Errorf("peak concurrency %d exceeds batch size 3", peak)
	}
}

func TestAllNoDelayAfterLastBatch(t *testing.T) {
	start := time.Now()
	All(context.Background(), []string{"A", "B"}, Plan{BatchSize: 2, InterBatchDelay: time.Second}, func(_ context.Context, _ string) (int, error) {
		return 1, nil
	})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("single-batch run should not pause for the inter-batch delay, took %v", elapsed)
	}
}

func TestAllCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := All(ctx, []string{"A", "B", "C"}, Plan{BatchSize: 1}, func(_ context.Context, _ string) (int, error) {
		return 1, nil
	})

	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("slot %d should carry the context error, got %v", i, r.Err)
		}
	}
}

func TestBatchesRechunksResults(t *testing.T) {
	results := make([]Result[int], 5)
	for i := range results {
		results[i].Symbol = fmt.Sprintf("S%d", i)
	}

	groups := Batches(results, 2)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	if len(groups[0]) != 2 || len(groups[2]) != 1 {
		t.Errorf("unexpected group sizes: %d, %d, %d", len(groups[0]), len(groups[1]), len(groups[2]))
	}
	if groups[1][0].Symbol != "S2" {
		t.Errorf("group boundaries shifted, got %q at start of second group", groups[1][0].Symbol)
	}
}
