package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type opStat struct {
	requests int64
	bytes    int64
}

var (
	errorsFetch  int64
	errorsView   int64
	warnsFetch   int64
	warnsView    int64
	chainReads   int64
	quoteReads   int64
	cacheHits    int64
	cacheMisses  int64
	cacheStores  int64
	viewsServed  int64
	operations   sync.Map // map[string]*opStat
)

func recordWarn(component string) {
	if strings.Contains(component, "fetcher") || strings.Contains(component, "reader") {
		atomic.AddInt64(&warnsFetch, 1)
	} else if strings.Contains(component, "flow") || strings.Contains(component, "server") {
		atomic.AddInt64(&warnsView, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "fetcher") || strings.Contains(component, "reader") {
		atomic.AddInt64(&errorsFetch, 1)
	} else if strings.Contains(component, "flow") || strings.Contains(component, "server") {
		atomic.AddInt64(&errorsView, 1)
	}
}

// IncrementChainRead counts one options chain fetched from the provider.
func IncrementChainRead(size int) {
	atomic.AddInt64(&chainReads, 1)
	recordOperation("chain_fetch", size)
}

// IncrementQuoteRead counts one quote fetched from the provider.
func IncrementQuoteRead(size int) {
	atomic.AddInt64(&quoteReads, 1)
	recordOperation("quote_fetch", size)
}

// IncrementCacheHit counts a view served from the freshness cache.
func IncrementCacheHit(view string) {
	atomic.AddInt64(&cacheHits, 1)
	atomic.AddInt64(&viewsServed, 1)
	recordOperation("cache_hit_"+view, 0)
}

// IncrementCacheMiss counts a view that had to run a fetch cycle.
func IncrementCacheMiss(view string) {
	atomic.AddInt64(&cacheMisses, 1)
	atomic.AddInt64(&viewsServed, 1)
	recordOperation("cache_miss_"+view, 0)
}

// IncrementCacheStore counts a freshly aggregated view written to the cache.
func IncrementCacheStore(view string) {
	atomic.AddInt64(&cacheStores, 1)
	recordOperation("cache_store_"+view, 0)
}

func recordOperation(name string, size int) {
	v, _ := operations.LoadOrStore(name, &opStat{})
	stat := v.(*opStat)
	atomic.AddInt64(&stat.requests, 1)
	atomic.AddInt64(&stat.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and pipeline statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	opData := map[string]map[string]int64{}
	operations.Range(func(k, v any) bool {
		name := k.(string)
		stat := v.(*opStat)
		opData[name] = map[string]int64{
			"requests": atomic.LoadInt64(&stat.requests),
			"bytes":    atomic.LoadInt64(&stat.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"errors_fetch": atomic.LoadInt64(&errorsFetch),
		"errors_view":  atomic.LoadInt64(&errorsView),
		"warns_fetch":  atomic.LoadInt64(&warnsFetch),
		"warns_view":   atomic.LoadInt64(&warnsView),
		"chain_reads":  atomic.LoadInt64(&chainReads),
		"quote_reads":  atomic.LoadInt64(&quoteReads),
		"cache_hits":   atomic.LoadInt64(&cacheHits),
		"cache_misses": atomic.LoadInt64(&cacheMisses),
		"cache_stores": atomic.LoadInt64(&cacheStores),
		"views_served": atomic.LoadInt64(&viewsServed),
		"goroutines":   runtime.NumGoroutine(),
		"cpu_percent":  cpuPct,
		"memory_mb":    int64(memStats.Used) / 1024 / 1024,
		"disk_mb":      int64(diskStats.Used) / 1024 / 1024,
		"operations":   opData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("Flow-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-ErrorsFetch"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_fetch"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-ErrorsView"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_view"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-WarnsFetch"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_fetch"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-ChainReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["chain_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-QuoteReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["quote_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-CacheHits"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["cache_hits"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-CacheMisses"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["cache_misses"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Flow-ViewsServed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["views_served"].(int64)))},
	)

	for name, stats := range opData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("Flow-OperationRequests"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Operation"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["requests"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("Flow-OperationBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Operation"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
