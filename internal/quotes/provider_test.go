package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/models"
)

func quoteServer(t *testing.T, handler http.HandlerFunc) *YahooClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewYahooClient(srv.URL, 2*time.Second, logrus.New())
}

func TestGetQuotes_ParsesBatch(t *testing.T) {
	c := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL,MSFT,NOPE", r.URL.Query().Get("symbols"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"AAPL","regularMarketPrice":151.25,"longName":"Apple Inc."},
			{"symbol":"MSFT","regularMarketPrice":320.5,"shortName":"Microsoft"}
		]}}`))
	})

	got, err := c.GetQuotes(context.Background(), []string{"AAPL", "MSFT", "NOPE"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got["AAPL"].Price.Equal(decimal.RequireFromString("151.25")))
	assert.Equal(t, "Apple Inc.", got["AAPL"].CompanyName)
	assert.Equal(t, "Microsoft", got["MSFT"].CompanyName)

	// unknown symbols are absent, not errors
	_, ok := got["NOPE"]
	assert.False(t, ok)
}

func TestGetQuotes_SkipsUnpricedSymbols(t *testing.T) {
	c := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"HALT","regularMarketPrice":0},
			{"symbol":"AAPL","regularMarketPrice":150}
		]}}`))
	})

	got, err := c.GetQuotes(context.Background(), []string{"HALT", "AAPL"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got["AAPL"].Price.Equal(decimal.NewFromInt(150)))
}

func TestGetQuotes_UpstreamFailure(t *testing.T) {
	c := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetQuotes(context.Background(), []string{"AAPL"})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestGetQuotes_BadPayload(t *testing.T) {
	c := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := c.GetQuotes(context.Background(), []string{"AAPL"})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestGetQuotes_EmptyBatch(t *testing.T) {
	c := NewYahooClient("http://unused.invalid", time.Second, logrus.New())
	got, err := c.GetQuotes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetQuotes_Timeout(t *testing.T) {
	c := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"quoteResponse":{"result":[]}}`))
	})
	c.client.Timeout = 50 * time.Millisecond

	_, err := c.GetQuotes(context.Background(), []string{"AAPL"})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestChartAndSearch_ProxyRaw(t *testing.T) {
	c := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/finance/search":
			assert.Equal(t, "apple", r.URL.Query().Get("q"))
			w.Write([]byte(`{"quotes":[{"symbol":"AAPL"}]}`))
		case r.URL.Path == "/v8/finance/chart/AAPL":
			assert.Equal(t, "1d", r.URL.Query().Get("interval"))
			w.Write([]byte(`{"chart":{"result":[{}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	search, err := c.Search(context.Background(), "apple")
	require.NoError(t, err)
	assert.Contains(t, string(search), "AAPL")

	chart, err := c.Chart(context.Background(), "AAPL", "1d", "1mo")
	require.NoError(t, err)
	assert.Contains(t, string(chart), "chart")
}

func TestTrendingAndNews_ProxyRaw(t *testing.T) {
	c := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/finance/trending/US":
			w.Write([]byte(`{"finance":{"result":[{"quotes":[{"symbol":"NVDA"}]}]}}`))
		case r.URL.Path == "/v2/finance/news":
			assert.Equal(t, "TSLA", r.URL.Query().Get("category"))
			w.Write([]byte(`{"items":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	trending, err := c.Trending(context.Background(), "US")
	require.NoError(t, err)
	assert.Contains(t, string(trending), "NVDA")

	news, err := c.News(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Contains(t, string(news), "items")
}
