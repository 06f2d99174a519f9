package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"optionflow/config"
	"optionflow/logger"
	"optionflow/models"
)

// Client fetches option chains and quotes from the Yahoo Finance v7 API.
// All requests share a pooled transport and flow through a token-bucket
// limiter so batched fetch runs cannot exceed the provider's tolerance.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	log       *logger.Entry
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")
	return t.base.RoundTrip(req)
}

// NewClient builds a Yahoo client from the fetch and source sections of the
// configuration.
func NewClient(fetchCfg config.FetchConfig, srcCfg config.YahooSourceConfig) *Client {
	transport := &http.Transport{
		MaxIdleConns:        fetchCfg.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: fetchCfg.ConnectionPool.MaxConnsPerHost,
		MaxConnsPerHost:     fetchCfg.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     fetchCfg.ConnectionPool.IdleConnTimeout(),
	}

	rps := fetchCfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := fetchCfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = rps
	}

	return &Client{
		http: &http.Client{
			Timeout:   fetchCfg.Timeout(),
			Transport: &userAgentTransport{base: transport, userAgent: srcCfg.UserAgent},
		},
		baseURL: srcCfg.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger().WithComponent("yahoo-reader"),
	}
}

type optionsEnvelope struct {
	OptionChain struct {
		Result []models.OptionChain `json:"result"`
		Error  *apiError            `json:"error"`
	} `json:"optionChain"`
}

type quoteEnvelope struct {
	QuoteResponse struct {
		Result []models.Quote `json:"result"`
		Error  *apiError      `json:"error"`
	} `json:"quoteResponse"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// OptionsChain fetches the option chain for symbol at its nearest
// expiration, along with the underlying quote and the full expiration list.
func (c *Client) OptionsChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	return c.fetchChain(ctx, symbol, 0)
}

// OptionsChainAt fetches the option chain for symbol at a specific
// expiration, given as epoch seconds from the chain's expiration list.
func (c *Client) OptionsChainAt(ctx context.Context, symbol string, expiration int64) (*models.OptionChain, error) {
	return c.fetchChain(ctx, symbol, expiration)
}

func (c *Client) fetchChain(ctx context.Context, symbol string, expiration int64) (*models.OptionChain, error) {
	endpoint := c.baseURL + "/v7/finance/options/" + url.PathEscape(symbol)
	if expiration > 0 {
		endpoint += "?date=" + strconv.FormatInt(expiration, 10)
	}

	start := time.Now()
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("options chain %s: %w", symbol, err)
	}

	var envelope optionsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("options chain %s: decode: %w", symbol, err)
	}
	if envelope.OptionChain.Error != nil {
		return nil, fmt.Errorf("options chain %s: %w", symbol, envelope.OptionChain.Error)
	}
	if len(envelope.OptionChain.Result) == 0 {
		return nil, fmt.Errorf("options chain %s: empty result", symbol)
	}

	logger.IncrementChainRead(len(body))
	c.log.WithFields(logger.Fields{
		"symbol":      symbol,
		"expiration":  expiration,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("fetched options chain")

	return &envelope.OptionChain.Result[0], nil
}

// Quote fetches the current market quote for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	endpoint := c.baseURL + "/v7/finance/quote?symbols=" + url.QueryEscape(symbol)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}

	var envelope quoteEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("quote %s: decode: %w", symbol, err)
	}
	if envelope.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, envelope.QuoteResponse.Error)
	}
	if len(envelope.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("quote %s: empty result", symbol)
	}

	logger.IncrementQuoteRead(len(body))
	return &envelope.QuoteResponse.Result[0], nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
