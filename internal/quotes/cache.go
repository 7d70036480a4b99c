package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// CachedProvider puts a short-TTL redis cache in front of a Provider to
// absorb repeated portfolio reads. Cache failures fall through to the
// inner provider; correctness never depends on the cache.
type CachedProvider struct {
	inner  Provider
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

func NewCachedProvider(inner Provider, client *redis.Client, ttl time.Duration, log *logrus.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, client: client, ttl: ttl, log: log}
}

func quoteKey(symbol string) string {
	return fmt.Sprintf("quote:%s", symbol)
}

func (c *CachedProvider) GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	res := make(map[string]Quote, len(symbols))
	missing := make([]string, 0, len(symbols))

	for _, sym := range symbols {
		data, err := c.client.Get(ctx, quoteKey(sym)).Bytes()
		if err != nil {
			if err != redis.Nil {
				c.log.Warnf("quote cache read failed for %s: %v", sym, err)
			}
			missing = append(missing, sym)
			continue
		}
		var q Quote
		if err := json.Unmarshal(data, &q); err != nil {
			c.log.Warnf("quote cache decode failed for %s: %v", sym, err)
			missing = append(missing, sym)
			continue
		}
		res[sym] = q
	}

	if len(missing) == 0 {
		return res, nil
	}

	fresh, err := c.inner.GetQuotes(ctx, missing)
	if err != nil {
		return nil, err
	}
	for sym, q := range fresh {
		res[sym] = q
		data, err := json.Marshal(q)
		if err != nil {
			continue
		}
		if err := c.client.Set(ctx, quoteKey(sym), data, c.ttl).Err(); err != nil {
			c.log.Warnf("quote cache write failed for %s: %v", sym, err)
		}
	}
	return res, nil
}
