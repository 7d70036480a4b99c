// Package quotes adapts the upstream market-data provider. Symbols the
// provider does not recognize are simply absent from results; only a
// whole-batch failure is an error.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/models"
)

// The upstream rejects requests without a browser user agent.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Quote is one priced symbol.
type Quote struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"company_name"`
	Price       decimal.Decimal `json:"price"`
}

// Provider fetches current prices for a batch of symbols.
type Provider interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// YahooClient talks to the Yahoo Finance query endpoints.
type YahooClient struct {
	baseURL string
	client  *http.Client
	log     *logrus.Logger
}

func NewYahooClient(baseURL string, timeout time.Duration, log *logrus.Logger) *YahooClient {
	return &YahooClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type yahooQuote struct {
	Symbol             string      `json:"symbol"`
	RegularMarketPrice json.Number `json:"regularMarketPrice"`
	LongName           string      `json:"longName"`
	ShortName          string      `json:"shortName"`
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuote `json:"result"`
	} `json:"quoteResponse"`
}

// GetQuotes prices the batch in one upstream call. Unrecognized or
// unpriced symbols are left out of the result map.
func (c *YahooClient) GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if len(symbols) == 0 {
		return map[string]Quote{}, nil
	}

	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var parsed yahooQuoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode quote response: %v", models.ErrProviderUnavailable, err)
	}

	res := make(map[string]Quote, len(parsed.QuoteResponse.Result))
	for _, q := range parsed.QuoteResponse.Result {
		price, err := decimal.NewFromString(q.RegularMarketPrice.String())
		if err != nil || !price.IsPositive() {
			c.log.Warnf("skipping unpriced symbol %s", q.Symbol)
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		res[strings.ToUpper(q.Symbol)] = Quote{
			Symbol:      strings.ToUpper(q.Symbol),
			CompanyName: name,
			Price:       price,
		}
	}
	return res, nil
}

// Search proxies the upstream symbol search, returning the raw payload.
func (c *YahooClient) Search(ctx context.Context, query string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=10&newsCount=0", c.baseURL, url.QueryEscape(query))
	return c.get(ctx, u)
}

// Chart proxies the upstream chart endpoint, returning the raw payload.
func (c *YahooClient) Chart(ctx context.Context, symbol, interval, rng string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s&includeAdjustedClose=true",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(interval), url.QueryEscape(rng))
	return c.get(ctx, u)
}

// Trending proxies the upstream trending-symbols feed for a region.
func (c *YahooClient) Trending(ctx context.Context, region string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/v1/finance/trending/%s", c.baseURL, url.PathEscape(region))
	return c.get(ctx, u)
}

// News proxies the upstream market news feed, optionally scoped to one
// symbol.
func (c *YahooClient) News(ctx context.Context, symbol string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/v2/finance/news", c.baseURL)
	if symbol != "" {
		u += "?category=" + url.QueryEscape(symbol)
	}
	return c.get(ctx, u)
}

func (c *YahooClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	return body, nil
}
