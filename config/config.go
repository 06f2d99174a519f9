package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Optionflow OptionflowConfig `yaml:"optionflow"`
	Server     ServerConfig     `yaml:"server"`
	Market     MarketConfig     `yaml:"market"`
	Cache      CacheConfig      `yaml:"cache"`
	Cooldowns  CooldownConfig   `yaml:"cooldowns"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Source     SourceConfig     `yaml:"source"`
	Views      ViewsConfig      `yaml:"views"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type OptionflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Port       int    `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

type MarketConfig struct {
	Timezone string `yaml:"timezone"`
}

type CacheConfig struct {
	MarketOpenTTLSeconds   int `yaml:"market_open_ttl_seconds"`
	ClosedMarketTTLSeconds int `yaml:"closed_market_ttl_seconds"`
	SweepIntervalSeconds   int `yaml:"sweep_interval_seconds"`
}

func (c CacheConfig) MarketOpenTTL() time.Duration {
	return time.Duration(c.MarketOpenTTLSeconds) * time.Second
}

func (c CacheConfig) ClosedMarketTTL() time.Duration {
	return time.Duration(c.ClosedMarketTTLSeconds) * time.Second
}

func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// CooldownConfig maps operation names to fetch cooldowns in milliseconds.
// DefaultMs applies to operations without an explicit entry.
type CooldownConfig struct {
	DefaultMs    int            `yaml:"default_ms"`
	OperationsMs map[string]int `yaml:"operations_ms"`
}

func (c CooldownConfig) Default() time.Duration {
	return time.Duration(c.DefaultMs) * time.Millisecond
}

func (c CooldownConfig) Operations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.OperationsMs))
	for op, ms := range c.OperationsMs {
		out[op] = time.Duration(ms) * time.Millisecond
	}
	return out
}

type FetchConfig struct {
	TimeoutMs      int                  `yaml:"timeout_ms"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	Summary        BatchPlanConfig      `yaml:"summary"`
	Movers         BatchPlanConfig      `yaml:"movers"`
	Chains         BatchPlanConfig      `yaml:"chains"`
}

func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutMs) * time.Millisecond
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns           int `yaml:"max_idle_conns"`
	MaxConnsPerHost        int `yaml:"max_conns_per_host"`
	IdleConnTimeoutSeconds int `yaml:"idle_conn_timeout_seconds"`
}

func (c ConnectionPoolConfig) IdleConnTimeout() time.Duration {
	return time.Duration(c.IdleConnTimeoutSeconds) * time.Second
}

// BatchPlanConfig shapes one batched fetch run: group size and the pause
// between consecutive groups.
type BatchPlanConfig struct {
	BatchSize         int `yaml:"batch_size"`
	InterBatchDelayMs int `yaml:"inter_batch_delay_ms"`
}

func (b BatchPlanConfig) InterBatchDelay() time.Duration {
	return time.Duration(b.InterBatchDelayMs) * time.Millisecond
}

type SourceConfig struct {
	Yahoo YahooSourceConfig `yaml:"yahoo"`
}

type YahooSourceConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

type ViewsConfig struct {
	TopMovers      TopMoversViewConfig `yaml:"top_movers"`
	LongDated      LongDatedViewConfig `yaml:"long_dated"`
	LongDatedLarge LargeViewConfig     `yaml:"long_dated_large"`
	Screener       ScreenerViewConfig  `yaml:"screener"`
}

type TopMoversViewConfig struct {
	MinVolume       int64 `yaml:"min_volume"`
	MinOpenInterest int64 `yaml:"min_open_interest"`
	BatchTop        int   `yaml:"batch_top"`
	ResultSize      int   `yaml:"result_size"`
}

type LongDatedViewConfig struct {
	MinVolume    int64 `yaml:"min_volume"`
	WindowMonths int   `yaml:"window_months"`
	ResultSize   int   `yaml:"result_size"`
}

type LargeViewConfig struct {
	MinVolume         int64   `yaml:"min_volume"`
	MinTotalValue     float64 `yaml:"min_total_value"`
	WindowStartMonths int     `yaml:"window_start_months"`
	WindowEndMonths   int     `yaml:"window_end_months"`
	ResultSize        int     `yaml:"result_size"`
}

type ScreenerViewConfig struct {
	DefaultMinVolume int64 `yaml:"default_min_volume"`
	DefaultMaxDays   int   `yaml:"default_max_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Market: MarketConfig{Timezone: "America/New_York"},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment overrides for deploy-time knobs.
	if v := os.Getenv("PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &port); err == nil && port > 0 {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		config.Server.CORSOrigin = strings.TrimSpace(v)
	}
	if config.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Optionflow.Name == "" {
		return fmt.Errorf("optionflow.name is required")
	}
	if cfg.Optionflow.Version == "" {
		return fmt.Errorf("optionflow.version is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port")
	}

	if cfg.Cache.MarketOpenTTLSeconds <= 0 {
		return fmt.Errorf("cache.market_open_ttl_seconds must be greater than 0")
	}
	if cfg.Cache.ClosedMarketTTLSeconds <= 0 {
		return fmt.Errorf("cache.closed_market_ttl_seconds must be greater than 0")
	}

	if cfg.Cooldowns.DefaultMs <= 0 {
		return fmt.Errorf("cooldowns.default_ms must be greater than 0")
	}

	if cfg.Fetch.TimeoutMs <= 0 {
		return fmt.Errorf("fetch.timeout_ms must be greater than 0")
	}
	if cfg.Fetch.Summary.BatchSize <= 0 {
		return fmt.Errorf("fetch.summary.batch_size must be greater than 0")
	}
	if cfg.Fetch.Movers.BatchSize <= 0 {
		return fmt.Errorf("fetch.movers.batch_size must be greater than 0")
	}
	if cfg.Fetch.Chains.BatchSize <= 0 {
		return fmt.Errorf("fetch.chains.batch_size must be greater than 0")
	}

	if cfg.Source.Yahoo.BaseURL == "" {
		return fmt.Errorf("source.yahoo.base_url is required")
	}

	if cfg.Views.TopMovers.ResultSize <= 0 {
		return fmt.Errorf("views.top_movers.result_size must be greater than 0")
	}
	if cfg.Views.TopMovers.BatchTop <= 0 {
		return fmt.Errorf("views.top_movers.batch_top must be greater than 0")
	}
	if cfg.Views.LongDated.WindowMonths <= 0 {
		return fmt.Errorf("views.long_dated.window_months must be greater than 0")
	}
	if cfg.Views.LongDatedLarge.WindowEndMonths <= cfg.Views.LongDatedLarge.WindowStartMonths {
		return fmt.Errorf("views.long_dated_large window must end after it starts")
	}

	return nil
}
